package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/deolexx/smart-home-secure/internal/logs"
)

// MessageHandler — колбэк моста на входящую телеметрию. Вызывается
// последовательно в контексте подписки, параллельно HTTP-потокам.
type MessageHandler func(clientID string, payload []byte)

// Options — параметры подключения моста.
type Options struct {
	BrokerURL            string
	ClientID             string
	Username             string
	Password             string
	TelemetryTopicFilter string        // devices/+/telemetry
	CommandTopicFormat   string        // devices/%s/cmd
	PublishTimeout       time.Duration // ограничение ожидания publish

	// TLS-настройки подключения к брокеру (nil — без TLS).
	TLS *tls.Config
}

// Bridge владеет единственным постоянным подключением к брокеру.
// Подписка и реконнект — внутреннее состояние; наружу торчат только
// Start/Stop и Publish.
type Bridge struct {
	opts    Options
	handler MessageHandler
	log     *logrus.Entry

	mu     sync.Mutex
	client paho.Client
}

func New(opts Options, handler MessageHandler) *Bridge {
	return &Bridge{
		opts:    opts,
		handler: handler,
		log:     logs.With("mqtt"),
	}
}

// Start поднимает подключение в фоне и сразу возвращается. Недоступный
// брокер не блокирует старт: ConnectRetry продолжает попытки, подписка
// случится в OnConnect. Идемпотентен.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return
	}

	co := paho.NewClientOptions().
		AddBroker(b.opts.BrokerURL).
		SetClientID(b.opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetConnectTimeout(10 * time.Second).
		SetKeepAlive(20 * time.Second).
		SetOrderMatters(true)

	if b.opts.Username != "" {
		co.SetUsername(b.opts.Username)
		co.SetPassword(b.opts.Password)
	}
	if b.opts.TLS != nil {
		co.SetTLSConfig(b.opts.TLS)
	}

	// Подписка в OnConnect — так она переживает реконнекты.
	co.SetOnConnectHandler(func(c paho.Client) {
		b.log.Infof("connected to broker %s", b.opts.BrokerURL)
		tok := c.Subscribe(b.opts.TelemetryTopicFilter, 1, b.onMessage)
		tok.Wait()
		if err := tok.Error(); err != nil {
			b.log.Errorf("subscribe %s failed: %v", b.opts.TelemetryTopicFilter, err)
			return
		}
		b.log.Infof("subscribed to %s", b.opts.TelemetryTopicFilter)
	})
	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.log.Warnf("connection lost: %v", err)
	})

	client := paho.NewClient(co)
	// Токен не ждём: при лежащем брокере он завершится только после
	// успешного повтора, а хаб должен подняться независимо от брокера.
	client.Connect()
	b.client = client
}

// Connected сообщает, открыто ли сейчас подключение к брокеру.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil && b.client.IsConnectionOpen()
}

// Stop закрывает подключение.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return
	}
	b.client.Disconnect(250)
	b.client = nil
}

func (b *Bridge) onMessage(_ paho.Client, msg paho.Message) {
	clientID, ok := ParseTelemetryTopic(msg.Topic())
	if !ok {
		b.log.Debugf("dropping message on malformed topic %q", msg.Topic())
		return
	}
	b.log.Debugf("telemetry from %s: %s", clientID, msg.Payload())
	b.handler(clientID, msg.Payload())
}

// Publish шлёт команду устройству: fire-and-forget с ограниченным
// ожиданием. Любой сбой — только в лог, HTTP-путь он не трогает.
func (b *Bridge) Publish(clientID string, payload []byte) {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	topic := fmt.Sprintf(b.opts.CommandTopicFormat, clientID)
	if client == nil || !client.IsConnectionOpen() {
		b.log.Warnf("broker not connected, dropping command to %s", topic)
		return
	}
	tok := client.Publish(topic, 1, false, payload)
	if !tok.WaitTimeout(b.opts.PublishTimeout) {
		b.log.Errorf("publish to %s timed out after %s", topic, b.opts.PublishTimeout)
		return
	}
	if err := tok.Error(); err != nil {
		b.log.Errorf("publish to %s failed: %v", topic, err)
		return
	}
	b.log.Infof("published command to %s payload %s", topic, payload)
}
