// Package rabbitmq is the "database:rabbitmq" plugin: an AMQP connection
// that declares the configured queues on connect.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/internal/dbkit"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Reference is the plugin reference of this package.
const Reference = "database:rabbitmq"

const defaultPort = 5672

// Settings are read from the keys next to uri/options in the database entry.
type Settings struct {
	Queues   []string `mapstructure:"queues"`
	Durable  bool     `mapstructure:"durable"`
	Prefetch int      `mapstructure:"prefetch"`
}

// DialFunc dials a broker.
type DialFunc func(url string, cfg amqp.Config) (*amqp.Connection, error)

// Broker is a RabbitMQ connection.
type Broker struct {
	logger   *slog.Logger
	url      string
	settings Settings
	dial     DialFunc
	conn     dbkit.Conn[*amqp.Connection]
}

var _ plugin.DatabasePlugin = (*Broker)(nil)

// New is the plugin.DatabaseFactory of "database:rabbitmq".
func New(host plugin.Host, cfg config.DatabaseConfig) (plugin.DatabasePlugin, error) {
	connURL, err := URL(cfg)
	if err != nil {
		return nil, err
	}

	settings, err := config.Decode(cfg.Extra, "", &Settings{})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq settings: %w", err)
	}

	return &Broker{
		logger:   logging.Component(host.Logger(), cfg.RegistryKey()),
		url:      connURL,
		settings: *settings,
		dial:     amqp.DialConfig,
	}, nil
}

// URL returns the configured URI, or an amqp:// URL built from options.
// options.database is the virtual host.
func URL(cfg config.DatabaseConfig) (string, error) {
	if cfg.URI != "" {
		_, err := amqp.ParseURI(cfg.URI)
		if err != nil {
			return "", fmt.Errorf("%w: %w", dbkit.ErrInvalidConfig, err)
		}

		return cfg.URI, nil
	}

	if cfg.Options == nil || cfg.Options.Host == "" {
		return "", fmt.Errorf("%w: rabbitmq needs uri or options.host", dbkit.ErrInvalidConfig)
	}

	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Options.Host,
		Port:     cfg.Options.Port,
		Username: cfg.Options.User,
		Password: cfg.Options.Password,
		Vhost:    cfg.Options.Database,
	}

	if uri.Port == 0 {
		uri.Port = defaultPort
	}

	if uri.Username == "" {
		uri.Username, uri.Password = "guest", "guest"
	}

	if uri.Vhost == "" {
		uri.Vhost = "/"
	}

	return uri.String(), nil
}

// Connect dials the broker, declares the configured queues and returns the *amqp.Connection.
func (b *Broker) Connect(ctx context.Context) (any, error) {
	conn, err := b.conn.Connect(ctx, b.open)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	b.logger.Info("rabbitmq connected", slog.Int("queues", len(b.settings.Queues)))

	return conn, nil
}

func (b *Broker) open(ctx context.Context) (*amqp.Connection, error) {
	amqpCfg := amqp.Config{Properties: amqp.NewConnectionProperties()} //nolint:exhaustruct // defaults are fine
	if deadline, ok := ctx.Deadline(); ok {
		amqpCfg.Dial = amqp.DefaultDial(max(0, time.Until(deadline)))
	}

	conn, err := b.dial(b.url, amqpCfg)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	if len(b.settings.Queues) == 0 {
		return conn, nil
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	defer func() { _ = channel.Close() }()

	for _, queue := range b.settings.Queues {
		_, err = channel.QueueDeclare(queue, b.settings.Durable, false, false, false, nil)
		if err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("declaring queue %q: %w", queue, err)
		}
	}

	return conn, nil
}

// Channel opens a channel on the connection with the configured prefetch.
func (b *Broker) Channel() (*amqp.Channel, error) {
	conn, err := b.conn.Get()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	if b.settings.Prefetch > 0 {
		err = channel.Qos(b.settings.Prefetch, 0, false)
		if err != nil {
			_ = channel.Close()

			return nil, fmt.Errorf("setting prefetch: %w", err)
		}
	}

	return channel, nil
}

// Connection returns the open *amqp.Connection, or a new *amqp.Channel when name is "channel".
func (b *Broker) Connection(name string) (any, error) {
	if name == "channel" {
		return b.Channel()
	}

	return b.conn.Get() //nolint:wrapcheck
}

// Disconnect closes the connection.
func (b *Broker) Disconnect(context.Context) error {
	err := b.conn.Disconnect(func(conn *amqp.Connection) error {
		if conn.IsClosed() {
			return nil
		}

		return conn.Close()
	})
	if err != nil {
		return fmt.Errorf("closing rabbitmq: %w", err)
	}

	return nil
}
