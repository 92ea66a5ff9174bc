package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/intakeerr"
	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

const testUser int64 = 5001

type sentMessage struct {
	ChatID    int64
	MessageID int64
	Prompt    prompts.Prompt
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int64
	sent     []sentMessage
	cleared  []int64
	deleted  []int64
	answered []string
}

func (f *fakeMessenger) Send(ctx context.Context, chatID int64, prompt prompts.Prompt) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := 100 + f.nextID
	f.sent = append(f.sent, sentMessage{ChatID: chatID, MessageID: id, Prompt: prompt})
	return id, nil
}

func (f *fakeMessenger) ClearKeyboard(ctx context.Context, chatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, messageID)
	return nil
}

func (f *fakeMessenger) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, text)
	return nil
}

func (f *fakeMessenger) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]string, 0, len(f.sent))
	for _, message := range f.sent {
		result = append(result, message.Prompt.Text)
	}
	return result
}

type fakeStager struct {
	stageErr   error
	forwardErr map[string]error
	staged     int
	forwarded  []string
	discarded  []string
}

func (f *fakeStager) Stage(ctx context.Context, fileID string) (string, error) {
	if f.stageErr != nil {
		return "", f.stageErr
	}
	f.staged++
	return filepath.Join("/staging", fmt.Sprintf("%s-%d.jpg", fileID, f.staged)), nil
}

func (f *fakeStager) Forward(ctx context.Context, issueKey, localPath string) error {
	f.forwarded = append(f.forwarded, issueKey+":"+filepath.Base(localPath))
	return f.forwardErr[filepath.Base(localPath)]
}

func (f *fakeStager) Discard(paths []string) {
	f.discarded = append(f.discarded, paths...)
}

type fakeTickets struct {
	err     error
	created []workflow.State
}

func (f *fakeTickets) Create(ctx context.Context, state workflow.State) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, state)
	return fmt.Sprintf("MOP-%d", 100+len(f.created)), nil
}

type fakeLinker struct{}

func (fakeLinker) BrowseURL(issueKey string) string {
	return "https://jira.example/browse/" + issueKey
}

type flakyStore struct {
	*store.Store
	getErr         error
	listDevicesErr error
}

func (f *flakyStore) GetWorkflowState(ctx context.Context, userID int64) (workflow.State, error) {
	if f.getErr != nil {
		return workflow.State{}, f.getErr
	}
	return f.Store.GetWorkflowState(ctx, userID)
}

func (f *flakyStore) ListDevicesByUser(ctx context.Context, userID int64) ([]store.Device, error) {
	if f.listDevicesErr != nil {
		return nil, f.listDevicesErr
	}
	return f.Store.ListDevicesByUser(ctx, userID)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	store     *flakyStore
	messenger *fakeMessenger
	stager    *fakeStager
	tickets   *fakeTickets
	engine    *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sqlStore, err := store.New(filepath.Join(t.TempDir(), "wizard.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })
	ctx := context.Background()
	require.NoError(t, sqlStore.AutoMigrate(ctx))
	_, err = sqlStore.SeedAppVersions(ctx, []string{"0.0.10", "0.0.14"})
	require.NoError(t, err)

	h := &harness{
		t:         t,
		ctx:       ctx,
		store:     &flakyStore{Store: sqlStore},
		messenger: &fakeMessenger{},
		stager:    &fakeStager{forwardErr: map[string]error{}},
		tickets:   &fakeTickets{},
	}
	h.engine = h.newEngine()
	return h
}

func (h *harness) newEngine() *Engine {
	return New(Dependencies{
		Store:     h.store,
		Messenger: h.messenger,
		Media:     h.stager,
		Tickets:   h.tickets,
		Links:     fakeLinker{},
		Catalog:   catalog.NewHolder(catalog.Default()),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func (h *harness) state() (workflow.State, bool) {
	h.t.Helper()
	state, err := h.store.GetWorkflowState(h.ctx, testUser)
	if errors.Is(err, store.ErrStateNotFound) {
		return workflow.State{}, false
	}
	require.NoError(h.t, err)
	return state, true
}

func (h *harness) requireStep(step workflow.Step) workflow.State {
	h.t.Helper()
	state, ok := h.state()
	require.True(h.t, ok, "expected a stored state at %s", step)
	require.Equal(h.t, step, state.Step)
	return state
}

func (h *harness) handle(event Event) {
	h.t.Helper()
	_ = h.engine.Handle(h.ctx, event)
}

func (h *harness) command(name string, chatID int64, chatTitle string) {
	h.t.Helper()
	h.handle(Event{UserID: testUser, ChatID: chatID, ChatTitle: chatTitle, Username: "alice", Command: name})
}

func (h *harness) text(value string) {
	h.t.Helper()
	h.handle(Event{UserID: testUser, ChatID: testUser, Text: value})
}

// press taps a button on the prompt currently recorded in state.
func (h *harness) press(data string) {
	h.t.Helper()
	state, _ := h.state()
	h.pressOn(state.PromptMessageID, data)
}

func (h *harness) pressOn(messageID int64, data string) {
	h.t.Helper()
	h.handle(Event{UserID: testUser, ChatID: testUser, MessageID: messageID, CallbackID: fmt.Sprintf("cb-%d", messageID), CallbackData: data})
}

func (h *harness) upload(fileID string) {
	h.t.Helper()
	h.handle(Event{UserID: testUser, ChatID: testUser, Media: &Media{FileID: fileID, Kind: "photo"}})
}

func (h *harness) addDevice(brandModel string) store.Device {
	h.t.Helper()
	device, err := h.store.CreateDevice(h.ctx, store.CreateDeviceInput{UserID: testUser, BrandModel: brandModel, OS: "Android", OSVersion: "14"})
	require.NoError(h.t, err)
	return device
}

func (h *harness) seedBoards() {
	h.t.Helper()
	require.NoError(h.t, h.store.ReplaceBoards(h.ctx, []store.Board{
		{ID: 1, Name: "Mobile", ProjectKey: "MOP", Epics: []store.Epic{{ID: 10, Key: "MOP-1", Name: "Onboarding"}}},
		{ID: 2, Name: "Web", ProjectKey: "WEB"},
	}))
	require.NoError(h.t, h.store.ReplaceContributors(h.ctx, []store.Contributor{
		{AccountID: "acc-2", DisplayName: "Zed"},
		{AccountID: "acc-1", DisplayName: "Ada"},
	}))
}

var errTicketBackend = fmt.Errorf("%w: jira POST /rest/api/3/issue failed: status=400", intakeerr.ErrTicketCreation)
