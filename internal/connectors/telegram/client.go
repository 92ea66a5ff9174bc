package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwizi/intakebot/internal/prompts"
)

const defaultAPIBase = "https://api.telegram.org"

// APIError is an ok=false reply from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: code=%d %s", e.Method, e.Code, strings.TrimSpace(e.Description))
}

// Client wraps the Bot API methods the wizard needs. It satisfies the
// wizard messenger and the media file resolver.
type Client struct {
	token      string
	apiBase    string
	httpClient *http.Client
}

func NewClient(token, apiBase string, timeout time.Duration) *Client {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = defaultAPIBase
	}
	if timeout <= 0 {
		timeout = 35 * time.Second
	}
	return &Client{
		token:      strings.TrimSpace(token),
		apiBase:    strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

func (c *Client) Send(ctx context.Context, chatID int64, prompt prompts.Prompt) (int64, error) {
	body := map[string]any{
		"chat_id": chatID,
		"text":    prompt.Text,
	}
	if markup := markupFor(prompt); markup != nil {
		body["reply_markup"] = markup
	}
	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", body, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// ClearKeyboard strips the inline keyboard from a sent message; omitting
// reply_markup removes it. A message that has no keyboard left is not an error.
func (c *Client) ClearKeyboard(ctx context.Context, chatID, messageID int64) error {
	err := c.call(ctx, "editMessageReplyMarkup", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
		return nil
	}
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text = strings.TrimSpace(text); text != "" {
		body["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

// FileURL resolves a file id to a download URL through getFile.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	var file telegramFile
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &file); err != nil {
		return "", err
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return "", fmt.Errorf("telegram getFile returned no path for %s", fileID)
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.token, strings.TrimLeft(file.FilePath, "/")), nil
}

func (c *Client) getMe(ctx context.Context) (string, error) {
	var me telegramUser
	if err := c.call(ctx, "getMe", map[string]any{}, &me); err != nil {
		return "", err
	}
	return strings.TrimSpace(me.Username), nil
}

func (c *Client) getUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegramUpdate, error) {
	var updates []telegramUpdate
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

func (c *Client) setMyCommands(ctx context.Context, commands []botCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

func (c *Client) call(ctx context.Context, method string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the endpoint, which embeds the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", method, err)
	}
	var response apiResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return fmt.Errorf("decode %s: status=%d: %w", method, res.StatusCode, err)
	}
	if !response.OK {
		code := response.ErrorCode
		if code == 0 {
			code = res.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: response.Description}
	}
	if result == nil || len(response.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func markupFor(prompt prompts.Prompt) *replyMarkup {
	if prompt.HasButtons() {
		rows := make([][]inlineButton, 0, len(prompt.Keyboard))
		for _, row := range prompt.Keyboard {
			buttons := make([]inlineButton, 0, len(row))
			for _, button := range row {
				item := inlineButton{Text: button.Text}
				if button.URL != "" {
					item.URL = button.URL
				} else {
					item.CallbackData = button.Data
				}
				buttons = append(buttons, item)
			}
			rows = append(rows, buttons)
		}
		return &replyMarkup{InlineKeyboard: rows}
	}
	if prompt.RemoveKeyboard {
		return &replyMarkup{RemoveKeyboard: true}
	}
	return nil
}
