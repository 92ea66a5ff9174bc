package telegram

import (
	"encoding/json"
	"regexp"
)

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type telegramUpdate struct {
	UpdateID      int64                  `json:"update_id"`
	Message       *telegramMessage       `json:"message"`
	CallbackQuery *telegramCallbackQuery `json:"callback_query"`
}

type telegramMessage struct {
	MessageID int64               `json:"message_id"`
	From      *telegramUser       `json:"from"`
	Chat      telegramChat        `json:"chat"`
	Text      string              `json:"text"`
	Caption   string              `json:"caption"`
	Photo     []telegramPhotoSize `json:"photo"`
	Video     *telegramFile       `json:"video"`
	Document  *telegramFile       `json:"document"`
	Animation *telegramFile       `json:"animation"`
	Audio     *telegramFile       `json:"audio"`
	Voice     *telegramFile       `json:"voice"`
	VideoNote *telegramFile       `json:"video_note"`
	Sticker   *telegramFile       `json:"sticker"`
}

// otherContent names the first content kind the wizard cannot stage, or "".
func (m *telegramMessage) otherContent() string {
	switch {
	case m.Animation != nil:
		return "animation"
	case m.Document != nil:
		return "document"
	case m.Audio != nil:
		return "audio"
	case m.Voice != nil:
		return "voice"
	case m.VideoNote != nil:
		return "video_note"
	case m.Sticker != nil:
		return "sticker"
	default:
		return ""
	}
}

type telegramCallbackQuery struct {
	ID      string           `json:"id"`
	From    telegramUser     `json:"from"`
	Message *telegramMessage `json:"message"`
	Data    string           `json:"data"`
}

type telegramChat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type telegramPhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

type telegramFile struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard,omitempty"`
	RemoveKeyboard bool             `json:"remove_keyboard,omitempty"`
}

type botCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

var telegramCommandSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)
