// Package prompts renders the text and inline keyboards sent at each step of
// the intake wizard. Every function here is pure.
package prompts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

// Button payloads are "{category}_{value}" or one of the fixed sentinels below.
const (
	PrefixDevice   = "device_"
	PrefixOS       = "os_"
	PrefixApp      = "app_"
	PrefixBoard    = "board_"
	PrefixEpic     = "epic_"
	PrefixAssignee = "assignee_"

	PayloadAddDevice  = "add_device"
	PayloadNewVersion = "new_version"
	PayloadEpicless   = "epic_epicless"
	PayloadNoUpload   = "upload_none"
	PayloadUploadMore = "upload_more_yes"
	PayloadRetry      = "finalize_retry"
)

const (
	gridColumns  = 3
	linksColumns = 2
)

type Button struct {
	Text string
	Data string
	URL  string
}

type Prompt struct {
	Text           string
	Keyboard       [][]Button
	RemoveKeyboard bool
}

// HasButtons reports whether the prompt carries an inline keyboard.
func (p Prompt) HasButtons() bool {
	return len(p.Keyboard) > 0
}

// Retry prefixes a hint to a prompt that is being shown again.
func Retry(hint string, prompt Prompt) Prompt {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return prompt
	}
	prompt.Text = hint + "\n\n" + prompt.Text
	return prompt
}

func BugDescription() Prompt {
	return Prompt{Text: "Please enter the description of the bug."}
}

func DeviceSelect(devices []store.Device) Prompt {
	rows := make([][]Button, 0, len(devices)+1)
	for _, device := range devices {
		rows = append(rows, []Button{{
			Text: device.BrandModel,
			Data: PrefixDevice + strconv.FormatInt(device.ID, 10),
		}})
	}
	rows = append(rows, []Button{{Text: "+ Add Device", Data: PayloadAddDevice}})
	return Prompt{Text: "Please select the device or add a new one:", Keyboard: rows}
}

func NewDeviceName() Prompt {
	return Prompt{Text: "Please enter the device name (e.g. iPhone 14):"}
}

func NewDeviceOS(operatingSystems []string) Prompt {
	rows := make([][]Button, 0, len(operatingSystems))
	for _, name := range operatingSystems {
		rows = append(rows, []Button{{Text: name, Data: PrefixOS + name}})
	}
	return Prompt{Text: "Please select the OS of the device:", Keyboard: rows}
}

func NewDeviceOSVersion() Prompt {
	return Prompt{Text: "Please enter the OS version of the device (e.g. 14.4, 11):"}
}

// AppVersion lists the known versions plus the "add new" entry.
func AppVersion(versions []string, deviceAdded bool) Prompt {
	rows := make([][]Button, 0, len(versions)+1)
	for _, version := range versions {
		rows = append(rows, []Button{{Text: version, Data: PrefixApp + version}})
	}
	rows = append(rows, []Button{{Text: "+ Add New Version", Data: PayloadNewVersion}})
	text := "Please select the app version:"
	if deviceAdded {
		text = "Device added successfully. " + text
	}
	return Prompt{Text: text, Keyboard: rows}
}

func NewAppVersion() Prompt {
	return Prompt{Text: "Please enter the new app version:"}
}

func Attachments(flow workflow.FlowKind) Prompt {
	text := "Please upload the screenshot or video of the bug. You can only upload one asset at a time. Or tap 'No Upload' to finish the process."
	if flow == workflow.FlowTaskCreation {
		text = "You can upload attachments one at a time as a photo or video. Or tap 'No Upload' to create the task."
	}
	return Prompt{Text: text, Keyboard: [][]Button{{{Text: "No Upload", Data: PayloadNoUpload}}}}
}

func UploadMore() Prompt {
	return Prompt{
		Text: "Do you want to upload more files?",
		Keyboard: [][]Button{
			{{Text: "Yes", Data: PayloadUploadMore}},
			{{Text: "No Upload", Data: PayloadNoUpload}},
		},
	}
}

// UploadNext asks for the next file after the user chose to add more.
func UploadNext() Prompt {
	return Prompt{
		Text:     "Please upload the next screenshot or video. You can upload only one asset at a time.",
		Keyboard: [][]Button{{{Text: "No Upload", Data: PayloadNoUpload}}},
	}
}

func BoardSelect(boards []store.Board) Prompt {
	buttons := make([]Button, 0, len(boards))
	for _, board := range boards {
		buttons = append(buttons, Button{Text: board.Name, Data: PrefixBoard + strconv.FormatInt(board.ID, 10)})
	}
	return Prompt{Text: "Please select the board to create the issue:", Keyboard: Grid(buttons, gridColumns)}
}

func NoBoards() Prompt {
	return Prompt{Text: "No boards found. Please try again later."}
}

// EpicSelect puts the epicless choice first, followed by the board's epics.
func EpicSelect(epics []store.Epic) Prompt {
	buttons := make([]Button, 0, len(epics)+1)
	buttons = append(buttons, Button{Text: "Epicless", Data: PayloadEpicless})
	for _, epic := range epics {
		label := epic.Name
		if strings.TrimSpace(label) == "" {
			label = epic.Key
		}
		buttons = append(buttons, Button{Text: label, Data: PrefixEpic + epic.Key})
	}
	return Prompt{Text: "Please select an epic:", Keyboard: Grid(buttons, gridColumns)}
}

func TaskTitle() Prompt {
	return Prompt{Text: "Please enter the task title."}
}

func TaskDescription() Prompt {
	return Prompt{Text: "Please enter the description of the task."}
}

// AssigneeSelect expects contributors already sorted by display name.
func AssigneeSelect(contributors []store.Contributor) Prompt {
	buttons := make([]Button, 0, len(contributors))
	for _, contributor := range contributors {
		buttons = append(buttons, Button{Text: contributor.DisplayName, Data: PrefixAssignee + contributor.AccountID})
	}
	return Prompt{Text: "Please select an assignee:", Keyboard: Grid(buttons, gridColumns)}
}

func NoAssignees() Prompt {
	return Prompt{Text: "No assignees found. Please try again later."}
}

func Uploading() Prompt {
	return Prompt{Text: "Uploading..."}
}

func CreatingTicket(flow workflow.FlowKind) Prompt {
	if flow == workflow.FlowTaskCreation {
		return Prompt{Text: "Creating task on Jira..."}
	}
	return Prompt{Text: "Creating bug report on Jira..."}
}

func TicketCreated(flow workflow.FlowKind, url string) Prompt {
	if flow == workflow.FlowTaskCreation {
		return Prompt{Text: "Task created successfully! You can view it here " + url}
	}
	return Prompt{Text: "Bug reported successfully! You can view it here " + url}
}

// TicketFailed reports a creation failure and offers to retry the submission.
func TicketFailed(reason string) Prompt {
	text := "Failed to create the Jira issue."
	if reason = strings.TrimSpace(reason); reason != "" {
		text += " " + reason
	}
	text += "\nTap Retry to try again or use /stop to cancel."
	return Prompt{Text: text, Keyboard: [][]Button{{{Text: "Retry", Data: PayloadRetry}}}}
}

func AttachmentsFailed(files []string) Prompt {
	return Prompt{Text: fmt.Sprintf("Failed to attach %d file(s): %s", len(files), strings.Join(files, ", "))}
}

func DownloadFailed() Prompt {
	return Prompt{
		Text:     "Failed to download the file. Please upload it again or tap 'No Upload' to continue.",
		Keyboard: [][]Button{{{Text: "No Upload", Data: PayloadNoUpload}}},
	}
}

func AlreadyActive() Prompt {
	return Prompt{Text: "You are already in the middle of another process. Please complete it or use /stop to start over."}
}

func Stopped() Prompt {
	return Prompt{Text: "Process stopped. You can start again with /bug or /task.", RemoveKeyboard: true}
}

func GenericFailure() Prompt {
	return Prompt{Text: "Something went wrong. Please try again.", RemoveKeyboard: true}
}

func Busy() Prompt {
	return Prompt{Text: "Too many requests right now. Please try again in a moment."}
}

func KeyboardRemoved() Prompt {
	return Prompt{Text: "Keyboard removed.", RemoveKeyboard: true}
}

// Links renders URL buttons two per row.
func Links(links []store.Link) Prompt {
	if len(links) == 0 {
		return Prompt{Text: "No links configured."}
	}
	buttons := make([]Button, 0, len(links))
	for _, link := range links {
		buttons = append(buttons, Button{Text: link.Label, URL: link.URL})
	}
	return Prompt{Text: "Here are some useful links:", Keyboard: Grid(buttons, linksColumns)}
}

// Grid splits buttons into rows of at most columns entries.
func Grid(buttons []Button, columns int) [][]Button {
	if columns <= 0 {
		columns = 1
	}
	rows := make([][]Button, 0, (len(buttons)+columns-1)/columns)
	for start := 0; start < len(buttons); start += columns {
		end := start + columns
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[start:end])
	}
	return rows
}
