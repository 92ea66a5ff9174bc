package telegram

import (
	"context"
	"strings"

	"github.com/dwizi/intakebot/internal/wizard"
)

var menuCommands = []botCommand{
	{Command: wizard.CommandBug, Description: "Report a bug"},
	{Command: wizard.CommandTask, Description: "Create a task"},
	{Command: wizard.CommandStop, Description: "Stop the current process"},
	{Command: wizard.CommandLinks, Description: "Show useful links"},
	{Command: wizard.CommandRemove, Description: "Remove the reply keyboard"},
}

func (c *Connector) syncCommands(ctx context.Context) error {
	commands := make([]botCommand, 0, len(menuCommands))
	for _, command := range menuCommands {
		name := telegramCommandName(command.Command)
		if name == "" {
			continue
		}
		commands = append(commands, botCommand{
			Command:     name,
			Description: telegramCommandDescription(command.Description),
		})
	}
	return c.client.setMyCommands(ctx, commands)
}

func telegramCommandName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = telegramCommandSanitizer.ReplaceAllString(normalized, "")
	if len(normalized) > 32 {
		normalized = normalized[:32]
	}
	return strings.Trim(normalized, "_")
}

func telegramCommandDescription(description string) string {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "Intake bot command"
	}
	if len(trimmed) > 256 {
		return strings.TrimSpace(trimmed[:256])
	}
	return trimmed
}
