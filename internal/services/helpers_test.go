package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"followup-bot/internal/models"
	"followup-bot/internal/repositories"
	"followup-bot/internal/wsnotify"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type sentMessage struct {
	To   string
	Text string
}

type fakeChannel struct {
	mu      sync.Mutex
	ready   bool
	sent    []sentMessage
	failFor map[string]bool
	// beforeSend runs inside Send, used to simulate a concurrent writer.
	beforeSend func(to string)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{ready: true, failFor: map[string]bool{}}
}

func (c *fakeChannel) IsReady() bool { return c.ready }

func (c *fakeChannel) Resolve(_ context.Context, phone string) string {
	return phone + "@s.whatsapp.net"
}

func (c *fakeChannel) Send(_ context.Context, to, text string) (string, error) {
	if c.beforeSend != nil {
		c.beforeSend(to)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[to] {
		return "", errors.New("falha de envio")
	}
	c.sent = append(c.sent, sentMessage{To: to, Text: text})
	return fmt.Sprintf("wamid-%d", len(c.sent)), nil
}

func (c *fakeChannel) Sent() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

type fakeGenerator struct {
	text    string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []wsnotify.Event
}

func (n *recordingNotifier) Broadcast(event interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := event.(wsnotify.Event); ok {
		n.events = append(n.events, e)
	}
}

func (n *recordingNotifier) Types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]string, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

func newTestStore(t *testing.T) *repositories.FileStore {
	t.Helper()
	return repositories.NewFileStore(filepath.Join(t.TempDir(), "database.json"))
}

func enableAutomation(t *testing.T, store *repositories.FileStore, apiKey string) {
	t.Helper()
	settings := models.DefaultSettings()
	settings.AgentName = "Ana"
	settings.AgencyName = "Casa Nova"
	settings.ServerAutomationEnabled = true
	settings.APIKey = apiKey
	require.NoError(t, store.Save(context.Background(), settings))
}

func addContact(t *testing.T, store *repositories.FileStore, c *models.Contact) *models.Contact {
	t.Helper()
	if c.Category == "" {
		c.Category = models.CategoryOwner
	}
	if c.ChatHistory == nil {
		c.ChatHistory = []models.ChatMessage{}
	}
	require.NoError(t, store.Create(context.Background(), c))
	return c
}

func loadContact(t *testing.T, store *repositories.FileStore, id string) *models.Contact {
	t.Helper()
	c, err := store.LoadOne(context.Background(), id)
	require.NoError(t, err)
	return c
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

const day = 24 * time.Hour
