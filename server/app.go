package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/deolexx/smart-home-secure/config"
	"github.com/deolexx/smart-home-secure/internal/audit"
	"github.com/deolexx/smart-home-secure/internal/auth"
	"github.com/deolexx/smart-home-secure/internal/authapi"
	"github.com/deolexx/smart-home-secure/internal/commands"
	"github.com/deolexx/smart-home-secure/internal/db"
	"github.com/deolexx/smart-home-secure/internal/devices"
	"github.com/deolexx/smart-home-secure/internal/health"
	"github.com/deolexx/smart-home-secure/internal/keycloak"
	"github.com/deolexx/smart-home-secure/internal/logs"
	"github.com/deolexx/smart-home-secure/internal/middleware"
	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/mqtt"
	"github.com/deolexx/smart-home-secure/internal/repo"
	"github.com/deolexx/smart-home-secure/internal/telemetry"
	"github.com/deolexx/smart-home-secure/internal/telemetryapi"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	handler    http.Handler
	bridge     *mqtt.Bridge
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d
	if a.db == nil {
		log.Fatalf("database.driver must be configured (postgres|mysql)")
	}
	if err := a.db.AutoMigrate(
		&models.Device{},
		&models.DeviceTelemetry{},
		&models.AuditLog{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) Сторы и сервисы */
	ds := repo.NewDeviceStore(a.db)
	ts := repo.NewTelemetryStore(a.db)
	as := repo.NewAuditStore(a.db)
	ingest := telemetry.NewService(ds, ts)

	/* 4) MQTT-мост. Колбэк работает в контексте подписки, отдельно от
	   HTTP-потоков: сперва сигнал подключения, затем приём записи. */
	var brokerTLS *tls.Config
	if a.cfg.MQTT.TLSEnabled {
		tcfg, err := mqtt.LoadTLSConfig(a.cfg.MQTT.TLSCACert, a.cfg.MQTT.TLSClientCert, a.cfg.MQTT.TLSClientKey)
		if err != nil {
			log.Fatalf("mqtt tls config: %v", err)
		}
		brokerTLS = tcfg
	}
	a.bridge = mqtt.New(mqtt.Options{
		BrokerURL:            a.cfg.MQTT.BrokerURL,
		ClientID:             a.cfg.MQTT.ClientID,
		Username:             a.cfg.MQTT.Username,
		Password:             a.cfg.MQTT.Password,
		TelemetryTopicFilter: a.cfg.MQTT.TelemetryTopicFilter,
		CommandTopicFormat:   a.cfg.MQTT.CommandTopicFormat,
		PublishTimeout:       a.cfg.MQTT.PublishTimeout,
		TLS:                  brokerTLS,
	}, func(clientID string, payload []byte) {
		ctx := context.Background()
		if telemetry.SignalsOffline(payload) {
			if err := ds.MarkOffline(ctx, clientID); err != nil {
				logs.With("mqtt").Errorf("mark offline %s: %v", clientID, err)
			}
		} else if err := ds.MarkOnline(ctx, clientID); err != nil {
			logs.With("mqtt").Errorf("mark online %s: %v", clientID, err)
		}
		if err := ingest.Ingest(ctx, clientID, payload); err != nil {
			logs.With("mqtt").Errorf("ingest from %s: %v", clientID, err)
		}
	})

	dispatcher := commands.NewDispatcher(ds, a.bridge)

	/* 5) Аутентификация: статическая таблица стратегий, порядок важен */
	verifier := keycloak.NewVerifier(a.cfg.Keycloak.ServerURL, a.cfg.Keycloak.Realm)
	chain := auth.NewChain(
		&auth.StaticTokenResolver{Token: a.cfg.TestAuth.Token},
		&auth.JWTResolver{Verifier: verifier, ClientID: a.cfg.Keycloak.ClientID},
	)

	kc := keycloak.NewClient(keycloak.Config{
		ServerURL:     a.cfg.Keycloak.ServerURL,
		Realm:         a.cfg.Keycloak.Realm,
		ClientID:      a.cfg.Keycloak.ClientID,
		ClientSecret:  a.cfg.Keycloak.ClientSecret,
		AdminRealm:    a.cfg.Keycloak.AdminRealm,
		AdminClientID: a.cfg.Keycloak.AdminClientID,
		AdminUsername: a.cfg.Keycloak.AdminUsername,
		AdminPassword: a.cfg.Keycloak.AdminPassword,
	})

	/* 6) Router. Сквозные слои навешиваются не через Use, а вокруг роутера
	   целиком (wrapRouter): mux применяет Use только к совпавшим маршрутам,
	   и 404/405 прошли бы мимо лога и аудита. */
	a.Router = mux.NewRouter().StrictSlash(true)

	/* 7) Маршруты */
	health.RegisterRoutes(a.Router, a.db, a.bridge.Connected)
	devices.RegisterRoutes(a.Router, devices.NewHandler(ds, dispatcher))
	telemetryapi.RegisterRoutes(a.Router, telemetryapi.NewHandler(ds, ingest))
	authapi.RegisterRoutes(a.Router, authapi.NewHandler(kc, authapi.TestCredentials{
		Token:    a.cfg.TestAuth.Token,
		Username: a.cfg.TestAuth.Username,
		Password: a.cfg.TestAuth.Password,
	}))

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})

	a.handler = wrapRouter(a.Router, chain, as)
}

// wrapRouter оборачивает роутер сквозными слоями, снаружи внутрь:
// request id → access-log → аутентификация → аудит → recoverer.
// Аудит снаружи recoverer'а: паника в обработчике попадает в запись
// тем же 500, который ушёл клиенту.
func wrapRouter(r *mux.Router, chain *auth.Chain, as *repo.AuditStore) http.Handler {
	var h http.Handler = r
	h = middleware.Recoverer(h)
	h = audit.Middleware(as)(h)
	h = auth.Middleware(chain)(h)
	h = middleware.LoggerMW(h)
	h = middleware.RequestID(h)
	return h
}

func (a *App) Run() error {
	if a.handler == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	/* Мост стартует в фоне: лежащий брокер не задерживает HTTP. */
	a.bridge.Start()

	handler := handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-Id"}),
	)(a.handler)

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	a.bridge.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	return nil
}
