// main.go (точка входа хаба)
package main

import (
	"log"

	"github.com/deolexx/smart-home-secure/config"
	"github.com/deolexx/smart-home-secure/server"
)

func main() {
	cfg := config.MustLoad()
	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
