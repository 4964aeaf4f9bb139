// Package nats publishes task events to a NATS JetStream stream.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/config"
)

// SubjectRoot prefixes every subject the client publishes to
const SubjectRoot = "wallpaper"

const dialTimeout = 5 * time.Second

// Client owns the connection and the JetStream handle of one run
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
}

// NewClient connects to cfg.URL and declares the event stream. The cleanup
// drains pending publishes before closing.
func NewClient(ctx context.Context, cfg config.NATSConfig, logger *zap.Logger) (*Client, func(), error) {
	logger = logger.Named("nats")

	conn, err := nats.Connect(cfg.URL, connectOptions(cfg, logger)...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open jetstream: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, streamConfig(cfg)); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare stream %s: %w", cfg.Stream, err)
	}

	logger.Info("connected",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("stream", cfg.Stream),
	)

	client := &Client{conn: conn, js: js, stream: cfg.Stream}
	cleanup := func() {
		if err := conn.Drain(); err != nil {
			logger.Warn("drain failed", zap.Error(err))
			conn.Close()
		}
	}
	return client, cleanup, nil
}

func connectOptions(cfg config.NATSConfig, logger *zap.Logger) []nats.Option {
	return []nats.Option{
		nats.Name(cfg.ClientID),
		nats.Timeout(dialTimeout),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
}

// streamConfig keeps every wallpaper.> subject for MaxAge, dropping the
// oldest messages first.
func streamConfig(cfg config.NATSConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "wallpaper download task and run events",
		Subjects:    []string{SubjectRoot + ".>"},
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		Storage:     jetstream.FileStorage,
		MaxAge:      cfg.MaxAge,
		Duplicates:  time.Minute,
		Replicas:    1,
	}
}

// JetStream returns the JetStream handle
func (c *Client) JetStream() jetstream.JetStream { return c.js }

// Stream returns the name of the event stream
func (c *Client) Stream() string { return c.stream }

// IsConnected reports whether the connection is up
func (c *Client) IsConnected() bool { return c.conn.IsConnected() }
