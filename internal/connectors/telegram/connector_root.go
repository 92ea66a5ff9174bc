package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dwizi/intakebot/internal/heartbeat"
	"github.com/dwizi/intakebot/internal/wizard"
)

const componentName = "connector:telegram"

// Queue accepts normalised events for processing.
type Queue interface {
	Enqueue(event wizard.Event) (wizard.Event, error)
}

// Connector long-polls getUpdates and hands every update to the queue.
type Connector struct {
	client      *Client
	pollSeconds int
	commandSync bool
	queue       Queue
	logger      *slog.Logger
	botUsername string
	offset      int64
	reporter    heartbeat.Reporter
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

func New(client *Client, pollSeconds int, queue Queue, logger *slog.Logger, opts ...Option) *Connector {
	if pollSeconds < 1 {
		pollSeconds = 25
	}
	connector := &Connector{
		client:      client,
		pollSeconds: pollSeconds,
		commandSync: true,
		queue:       queue,
		logger:      logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "telegram"
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

// BotUsername is known once Start has looked up the bot identity.
func (c *Connector) BotUsername() string {
	return c.botUsername
}

func (c *Connector) disabled(ctx context.Context, reason string) error {
	if c.reporter != nil {
		c.reporter.Disabled(componentName, reason)
	}
	c.logger.Info("connector disabled, " + strings.TrimSpace(reason))
	<-ctx.Done()
	return nil
}
