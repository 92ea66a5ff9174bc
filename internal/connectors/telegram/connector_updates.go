package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/dwizi/intakebot/internal/dispatch"
	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/wizard"
)

func (c *Connector) handleUpdate(ctx context.Context, update telegramUpdate) {
	event, ok := toEvent(update)
	if !ok {
		c.logger.Debug("update ignored", "update_id", update.UpdateID)
		return
	}
	queued, err := c.queue.Enqueue(event)
	if err == nil {
		c.logger.Debug("update queued", "update_id", update.UpdateID, "event_id", queued.ID, "user_id", queued.UserID)
		return
	}
	c.logger.Warn("update rejected", "update_id", update.UpdateID, "user_id", event.UserID, "error", err)
	if !errors.Is(err, dispatch.ErrQueueFull) {
		return
	}
	busy := prompts.Busy()
	if event.IsCallback() {
		if answerErr := c.client.AnswerCallback(ctx, event.CallbackID, busy.Text); answerErr != nil {
			c.logger.Warn("answer busy callback failed", "error", answerErr)
		}
		return
	}
	if _, sendErr := c.client.Send(ctx, event.ChatID, busy); sendErr != nil {
		c.logger.Warn("send busy notice failed", "chat_id", event.ChatID, "error", sendErr)
	}
}

// toEvent normalises an update. Updates without a human sender are dropped, as
// are messages with no text and no content at all (service messages). Files
// the wizard cannot stage become unsupported events so the step can re-prompt.
func toEvent(update telegramUpdate) (wizard.Event, bool) {
	if query := update.CallbackQuery; query != nil {
		if query.From.IsBot || query.ID == "" {
			return wizard.Event{}, false
		}
		event := wizard.Event{
			UserID:       query.From.ID,
			ChatID:       query.From.ID,
			Username:     query.From.Username,
			FirstName:    query.From.FirstName,
			CallbackID:   query.ID,
			CallbackData: query.Data,
		}
		if query.Message != nil {
			event.ChatID = query.Message.Chat.ID
			event.ChatTitle = query.Message.Chat.Title
			event.ChatUsername = query.Message.Chat.Username
			event.MessageID = query.Message.MessageID
		}
		return event, true
	}

	message := update.Message
	if message == nil || message.From == nil || message.From.IsBot {
		return wizard.Event{}, false
	}
	event := wizard.Event{
		UserID:       message.From.ID,
		ChatID:       message.Chat.ID,
		ChatTitle:    message.Chat.Title,
		ChatUsername: message.Chat.Username,
		Username:     message.From.Username,
		FirstName:    message.From.FirstName,
		MessageID:    message.MessageID,
		Text:         message.Text,
	}
	switch {
	case len(message.Photo) > 0:
		event.Media = &wizard.Media{FileID: largestPhoto(message.Photo).FileID, Kind: "photo"}
		event.Text = message.Caption
	case message.Video != nil:
		event.Media = &wizard.Media{FileID: message.Video.FileID, Kind: "video"}
		event.Text = message.Caption
	case message.otherContent() != "":
		event.Unsupported = message.otherContent()
		event.Text = message.Caption
		return event, true
	default:
		event.Command = wizard.ParseCommand(message.Text)
	}
	if event.Media == nil && strings.TrimSpace(event.Text) == "" {
		return wizard.Event{}, false
	}
	return event, true
}

func largestPhoto(sizes []telegramPhotoSize) telegramPhotoSize {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height > best.Width*best.Height ||
			(size.Width*size.Height == best.Width*best.Height && size.FileSize > best.FileSize) {
			best = size
		}
	}
	return best
}
