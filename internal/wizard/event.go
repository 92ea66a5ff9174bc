package wizard

import "strings"

const (
	CommandBug    = "bug"
	CommandTask   = "task"
	CommandStop   = "stop"
	CommandLinks  = "links"
	CommandRemove = "remove"
)

// Shape classifies what an inbound event carries.
type Shape uint8

const (
	ShapeText Shape = 1 << iota
	ShapeCallback
	ShapeMedia
	ShapeCommand
	// ShapeUnsupported covers messages no step accepts, like documents or stickers.
	ShapeUnsupported
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeCallback:
		return "callback"
	case ShapeMedia:
		return "media"
	case ShapeCommand:
		return "command"
	case ShapeUnsupported:
		return "unsupported"
	default:
		return "mixed"
	}
}

type Media struct {
	FileID string
	Kind   string
}

// Event is one inbound chat update, already normalised by the connector.
type Event struct {
	ID           string
	UserID       int64
	ChatID       int64
	ChatTitle    string
	ChatUsername string
	Username     string
	FirstName    string
	MessageID    int64
	Text         string
	Command      string
	CallbackID   string
	CallbackData string
	Media        *Media
	// Unsupported names the content kind of a message the wizard cannot use.
	Unsupported string
}

func (e Event) Shape() Shape {
	switch {
	case e.Command != "":
		return ShapeCommand
	case e.CallbackID != "":
		return ShapeCallback
	case e.Media != nil:
		return ShapeMedia
	case e.Unsupported != "":
		return ShapeUnsupported
	default:
		return ShapeText
	}
}

func (e Event) IsCallback() bool {
	return e.CallbackID != ""
}

// ParseCommand extracts the command name from "/name@bot args" text.
// It returns "" when the text is not a command.
func ParseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.TrimPrefix(text, "/")
	if index := strings.IndexAny(name, " \t\n"); index >= 0 {
		name = name[:index]
	}
	if index := strings.Index(name, "@"); index >= 0 {
		name = name[:index]
	}
	return strings.ToLower(name)
}

func channelName(event Event) string {
	if title := strings.TrimSpace(event.ChatTitle); title != "" {
		return title
	}
	if username := strings.TrimSpace(event.ChatUsername); username != "" {
		return username
	}
	return "DirectMessage"
}
