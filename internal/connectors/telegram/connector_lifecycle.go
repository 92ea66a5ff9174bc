package telegram

import (
	"context"
	"time"
)

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if !c.client.Configured() {
		return c.disabled(ctx, "token missing")
	}
	if c.queue == nil {
		return c.disabled(ctx, "event queue missing")
	}

	if c.reporter != nil {
		c.reporter.Beat(componentName, "polling updates")
	}
	c.logger.Info("connector started", "api_base", c.client.apiBase)
	if username, err := c.client.getMe(ctx); err == nil {
		c.botUsername = username
		if c.botUsername != "" {
			c.logger.Info("telegram bot identity loaded", "username", c.botUsername)
		}
	} else {
		c.logger.Warn("telegram bot username lookup failed", "error", err)
	}
	if c.commandSync {
		if err := c.syncCommands(ctx); err != nil {
			c.logger.Warn("telegram command sync failed", "error", err)
		} else {
			c.logger.Info("telegram commands synced")
		}
	}

	for {
		if ctx.Err() != nil {
			return c.stopped()
		}
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			if c.reporter != nil {
				c.reporter.Degrade(componentName, "poll failed", err)
			}
			c.logger.Error("poll failed", "error", err)
			select {
			case <-ctx.Done():
				return c.stopped()
			case <-time.After(1500 * time.Millisecond):
			}
		} else if c.reporter != nil {
			c.reporter.Beat(componentName, "poll cycle ok")
		}
	}
}

func (c *Connector) stopped() error {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
	return nil
}

func (c *Connector) pollOnce(ctx context.Context) error {
	updates, err := c.client.getUpdates(ctx, c.offset, c.pollSeconds)
	if err != nil {
		return err
	}
	for _, update := range updates {
		if update.UpdateID >= c.offset {
			c.offset = update.UpdateID + 1
		}
		c.handleUpdate(ctx, update)
	}
	return nil
}
