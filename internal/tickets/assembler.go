// Package tickets turns a finished workflow state into a tracker issue.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/intakeerr"
	"github.com/dwizi/intakebot/internal/jira"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

type DeviceLookup interface {
	LookupDevice(ctx context.Context, id int64) (store.Device, error)
}

type IssueCreator interface {
	CreateIssue(ctx context.Context, input jira.IssueInput) (jira.Issue, error)
}

type CatalogSource interface {
	Get() catalog.Catalog
}

type Config struct {
	ProjectKey   string
	BugParentKey string
	ReporterID   string
}

type Assembler struct {
	cfg      Config
	devices  DeviceLookup
	creator  IssueCreator
	catalogs CatalogSource
	now      func() time.Time
	location *time.Location
}

type Option func(*Assembler)

func WithClock(now func() time.Time) Option {
	return func(assembler *Assembler) {
		if now != nil {
			assembler.now = now
		}
	}
}

func WithLocation(location *time.Location) Option {
	return func(assembler *Assembler) {
		if location != nil {
			assembler.location = location
		}
	}
}

func New(cfg Config, devices DeviceLookup, creator IssueCreator, catalogs CatalogSource, opts ...Option) *Assembler {
	assembler := &Assembler{
		cfg:      cfg,
		devices:  devices,
		creator:  creator,
		catalogs: catalogs,
		now:      time.Now,
		location: time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(assembler)
		}
	}
	return assembler
}

// Create dispatches on the flow kind and returns the created issue key.
func (a *Assembler) Create(ctx context.Context, state workflow.State) (string, error) {
	switch state.Flow {
	case workflow.FlowBugReport:
		return a.CreateBugTicket(ctx, state)
	case workflow.FlowTaskCreation:
		return a.CreateTaskTicket(ctx, state)
	default:
		return "", fmt.Errorf("%w: unknown flow kind %q", intakeerr.ErrTicketCreation, state.Flow)
	}
}

func (a *Assembler) CreateBugTicket(ctx context.Context, state workflow.State) (string, error) {
	device, err := a.devices.LookupDevice(ctx, state.DeviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return "", fmt.Errorf("%w: device %d not found", intakeerr.ErrTicketCreation, state.DeviceID)
		}
		return "", fmt.Errorf("lookup device: %w", err)
	}

	current := a.catalogs.Get()
	input := jira.IssueInput{
		ProjectKey:  a.cfg.ProjectKey,
		Summary:     a.BugSummary(state.ChannelName),
		Description: fmt.Sprintf("%s\n\nBug reported by: %s", state.Description, state.Reporter()),
		IssueType:   "Bug",
		ParentKey:   a.cfg.BugParentKey,
		ReporterID:  a.cfg.ReporterID,
		CustomFields: customFields(current.CustomFields, map[string]string{
			"brand_model": device.BrandModel,
			"os":          device.OS,
			"os_version":  device.OSVersion,
			"app_version": state.AppVersion,
		}),
	}
	if assigneeID, ok := current.BugAssignee(state.ChannelName); ok {
		input.AssigneeID = assigneeID
	}
	return a.create(ctx, input)
}

func (a *Assembler) CreateTaskTicket(ctx context.Context, state workflow.State) (string, error) {
	if strings.TrimSpace(state.AssigneeID) == "" {
		return "", fmt.Errorf("%w: task assignee is required", intakeerr.ErrTicketCreation)
	}
	projectKey := strings.TrimSpace(state.ProjectKey)
	if projectKey == "" {
		projectKey = a.cfg.ProjectKey
	}
	input := jira.IssueInput{
		ProjectKey:  projectKey,
		Summary:     state.Title,
		Description: state.Description,
		IssueType:   "Task",
		AssigneeID:  state.AssigneeID,
	}
	if !state.Epicless {
		input.ParentKey = state.EpicKey
	}
	return a.create(ctx, input)
}

func (a *Assembler) create(ctx context.Context, input jira.IssueInput) (string, error) {
	issue, err := a.creator.CreateIssue(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", intakeerr.ErrTicketCreation, err)
	}
	return issue.Key, nil
}

// BugSummary renders "Bug - {channel} - dd.mm.yyyy - hh:mm AM".
func (a *Assembler) BugSummary(channel string) string {
	now := a.now().In(a.location)
	return fmt.Sprintf("Bug - %s - %s - %s", channel, now.Format("02.01.2006"), now.Format("03:04 PM"))
}

func customFields(ids catalog.CustomFields, values map[string]string) map[string]string {
	result := map[string]string{}
	assign := func(fieldID, value string) {
		if strings.TrimSpace(fieldID) != "" {
			result[fieldID] = value
		}
	}
	assign(ids.BrandModel, values["brand_model"])
	assign(ids.OS, values["os"])
	assign(ids.OSVersion, values["os_version"])
	assign(ids.AppVersion, values["app_version"])
	return result
}
