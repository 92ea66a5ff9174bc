package wizard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

var versionPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._+-]{0,31}$`)

func (e *Engine) bugDescription(ctx context.Context, t *turn) error {
	devices, err := e.store.ListDevicesByUser(ctx, t.state.UserID)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	t.state.Description = strings.TrimSpace(t.event.Text)
	return e.advance(ctx, t, workflow.StepBugDevice, prompts.DeviceSelect(devices))
}

func (e *Engine) bugDevice(ctx context.Context, t *turn) error {
	data := t.event.CallbackData
	if data == prompts.PayloadAddDevice {
		t.state.NewDevice = workflow.NewDevice{}
		return e.advance(ctx, t, workflow.StepBugNewDeviceName, prompts.NewDeviceName())
	}

	const invalid = "Invalid selection. Please select an existing device or add a new one."
	raw, ok := strings.CutPrefix(data, prompts.PrefixDevice)
	if !ok {
		return e.reprompt(ctx, t, invalid)
	}
	deviceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return e.reprompt(ctx, t, invalid)
	}
	device, err := e.store.LookupDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return e.reprompt(ctx, t, invalid)
		}
		return fmt.Errorf("lookup device: %w", err)
	}
	if device.UserID != t.state.UserID {
		return e.reprompt(ctx, t, invalid)
	}

	versions, err := e.store.ListAppVersions(ctx)
	if err != nil {
		return fmt.Errorf("list app versions: %w", err)
	}
	t.state.DeviceID = device.ID
	return e.advance(ctx, t, workflow.StepBugAppVersion, prompts.AppVersion(versions, false))
}

func (e *Engine) bugNewDeviceName(ctx context.Context, t *turn) error {
	t.state.NewDevice.Name = strings.TrimSpace(t.event.Text)
	return e.advance(ctx, t, workflow.StepBugNewDeviceOS, prompts.NewDeviceOS(e.catalog.Get().OperatingSystems))
}

func (e *Engine) bugNewDeviceOS(ctx context.Context, t *turn) error {
	name, ok := strings.CutPrefix(t.event.CallbackData, prompts.PrefixOS)
	if !ok || !e.catalog.Get().HasOS(name) {
		return e.reprompt(ctx, t, "Invalid OS selection. Please select from the buttons below.")
	}
	t.state.NewDevice.OS = name
	return e.advance(ctx, t, workflow.StepBugNewDeviceOSVersion, prompts.NewDeviceOSVersion())
}

func (e *Engine) bugNewDeviceOSVersion(ctx context.Context, t *turn) error {
	t.state.NewDevice.OSVersion = strings.TrimSpace(t.event.Text)
	device, err := e.store.CreateDevice(ctx, store.CreateDeviceInput{
		UserID:     t.state.UserID,
		BrandModel: t.state.NewDevice.Name,
		OS:         t.state.NewDevice.OS,
		OSVersion:  t.state.NewDevice.OSVersion,
	})
	if err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	e.logger.Info("device added", "user_id", t.state.UserID, "device_id", device.ID, "brand_model", device.BrandModel)

	versions, err := e.store.ListAppVersions(ctx)
	if err != nil {
		return fmt.Errorf("list app versions: %w", err)
	}
	t.state.DeviceID = device.ID
	t.state.NewDevice = workflow.NewDevice{}
	return e.advance(ctx, t, workflow.StepBugAppVersion, prompts.AppVersion(versions, true))
}

func (e *Engine) bugAppVersion(ctx context.Context, t *turn) error {
	data := t.event.CallbackData
	if data == prompts.PayloadNewVersion {
		return e.advance(ctx, t, workflow.StepBugNewAppVersion, prompts.NewAppVersion())
	}

	const invalid = "Invalid app version selection. Please select from the buttons below."
	version, ok := strings.CutPrefix(data, prompts.PrefixApp)
	if !ok {
		return e.reprompt(ctx, t, invalid)
	}
	versions, err := e.store.ListAppVersions(ctx)
	if err != nil {
		return fmt.Errorf("list app versions: %w", err)
	}
	if !contains(versions, version) {
		return e.reprompt(ctx, t, invalid)
	}
	t.state.AppVersion = version
	return e.advance(ctx, t, workflow.StepBugAttachments, prompts.Attachments(t.state.Flow))
}

func (e *Engine) bugNewAppVersion(ctx context.Context, t *turn) error {
	version := strings.TrimSpace(t.event.Text)
	if !versionPattern.MatchString(version) {
		return e.reprompt(ctx, t, "Please enter a version such as 1.2.3.")
	}
	added, err := e.store.AppendAppVersion(ctx, version)
	if err != nil {
		return fmt.Errorf("append app version: %w", err)
	}
	if added {
		e.logger.Info("app version added", "user_id", t.state.UserID, "version", version)
	}
	t.state.AppVersion = version
	prompt := prompts.Attachments(t.state.Flow)
	prompt.Text = "New app version added. " + prompt.Text
	return e.advance(ctx, t, workflow.StepBugAttachments, prompt)
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
