package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"followup-bot/internal/models"
	"followup-bot/internal/repositories"
	"followup-bot/internal/services"
	"followup-bot/internal/wsnotify"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct {
	mu    sync.Mutex
	ready bool
	sent  []string
}

func (c *stubChannel) IsReady() bool { return c.ready }

func (c *stubChannel) Resolve(_ context.Context, phone string) string {
	return phone + "@s.whatsapp.net"
}

func (c *stubChannel) Send(_ context.Context, to, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return "", errors.New("offline")
	}
	c.sent = append(c.sent, to+": "+text)
	return "wamid-1", nil
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	handler http.Handler
	store   *repositories.FileStore
	channel *stubChannel
	manager *services.ConnectionManager
	hub     *wsnotify.WebSocketManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repositories.NewFileStore(filepath.Join(t.TempDir(), "database.json"))
	hub := wsnotify.NewManager()
	channel := &stubChannel{ready: true}
	manager := services.NewConnectionManager(hub)
	contacts := services.NewContactService(store, store, channel, hub)
	h := NewHTTPHandler(contacts, manager)
	return &testServer{
		handler: NewRouter(h, hub, "/api/v1/swagger/swagger.json"),
		store:   store,
		channel: channel,
		manager: manager,
		hub:     hub,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, apiEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData(t *testing.T, env apiEnvelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestContactsCRUD(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/contacts", map[string]interface{}{
		"name": "Maria Souza", "phone": "5511987654321", "category": "Proprietário", "notes": "quer vender",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created models.Contact
	decodeData(t, env, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 30, created.FollowUpFrequencyDays)
	assert.True(t, created.AutoPilotEnabled)

	code, env = s.do(t, http.MethodGet, "/api/v1/contacts", nil)
	require.Equal(t, http.StatusOK, code)
	var list []models.Contact
	decodeData(t, env, &list)
	assert.Len(t, list, 1)

	code, env = s.do(t, http.MethodPut, "/api/v1/contacts/"+created.ID, map[string]interface{}{
		"name": "Maria S.", "automationStage": 2,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var updated models.Contact
	decodeData(t, env, &updated)
	assert.Equal(t, "Maria S.", updated.Name)
	assert.Equal(t, models.StageWaitingReply2, updated.AutomationStage)
	assert.Equal(t, models.CategoryOwner, updated.Category)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/contacts/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/contacts/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, models.StatusError, env.Status)
	assert.Equal(t, models.CodeNotFound, env.Code)
}

func TestCreateContact_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "malformed json", body: `{"name":`},
		{name: "missing phone", body: map[string]string{"name": "Maria", "category": "Construtor"}},
		{name: "unknown category", body: map[string]string{"name": "Maria", "phone": "11987654321", "category": "Investidor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/api/v1/contacts", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, models.CodeInvalidInput, env.Code)
		})
	}
}

func TestCreateContact_Duplicate(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"id": "c1", "name": "Maria", "phone": "11987654321", "category": "Construtor"}

	code, _ := s.do(t, http.MethodPost, "/api/v1/contacts", body)
	require.Equal(t, http.StatusCreated, code)
	code, env := s.do(t, http.MethodPost, "/api/v1/contacts", body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, models.CodeConflict, env.Code)
}

func TestSendMessage(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Create(context.Background(), &models.Contact{
		ID: "c1", Name: "Maria", Phone: "11987654321", Category: models.CategoryClient,
		AutomationStage: models.StageWaitingReply1,
	}))

	code, env := s.do(t, http.MethodPost, "/api/v1/contacts/c1/send", map[string]string{"message": "Bom dia!"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var contact models.Contact
	decodeData(t, env, &contact)
	assert.Equal(t, models.StageWaitingReply1, contact.AutomationStage)
	require.Len(t, contact.ChatHistory, 1)
	assert.Equal(t, []string{"11987654321@s.whatsapp.net: Bom dia!"}, s.channel.sent)

	code, _ = s.do(t, http.MethodPost, "/api/v1/contacts/c1/send", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	s.channel.ready = false
	code, env = s.do(t, http.MethodPost, "/api/v1/contacts/c1/send", map[string]string{"message": "Oi"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, models.CodeChannelUnavailable, env.Code)
}

func TestAcknowledgeAndAutopilot(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Create(context.Background(), &models.Contact{
		ID: "c1", Name: "Maria", Phone: "11987654321", Category: models.CategoryClient,
		AutoPilotEnabled: true, HasUnreadReply: true, LastReplyContent: "Oi!",
	}))

	code, env := s.do(t, http.MethodPost, "/api/v1/contacts/c1/ack", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var acked models.Contact
	decodeData(t, env, &acked)
	assert.False(t, acked.HasUnreadReply)

	code, _ = s.do(t, http.MethodPost, "/api/v1/contacts/c1/autopilot", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/contacts/c1/autopilot", map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, code, env.Message)
	var off models.Contact
	decodeData(t, env, &off)
	assert.False(t, off.AutoPilotEnabled)

	code, _ = s.do(t, http.MethodPost, "/api/v1/contacts/missing/ack", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSettings_HidesAPIKey(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/settings", map[string]interface{}{
		"agentName": "Ana", "agencyName": "Casa Nova", "messageTone": "Formal",
		"apiKey": "chave-secreta-bem-longa", "defaultFrequencyOwner": 20,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.NotContains(t, string(env.Data), "chave-secreta-bem-longa")

	var view struct {
		AgentName string `json:"agentName"`
		HasAPIKey bool   `json:"hasApiKey"`
	}
	decodeData(t, env, &view)
	assert.Equal(t, "Ana", view.AgentName)
	assert.True(t, view.HasAPIKey)

	stored, err := s.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chave-secreta-bem-longa", stored.APIKey)

	code, _ = s.do(t, http.MethodPost, "/api/v1/settings", map[string]string{"messageTone": "Agressivo"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/autopilot", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, code, env.Message)
	code, env = s.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, code)
	var current struct {
		ServerAutomationEnabled bool `json:"serverAutomationEnabled"`
	}
	decodeData(t, env, &current)
	assert.True(t, current.ServerAutomationEnabled)
}

func TestStatusAndQRCode(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/qrcode-base64", nil)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, models.StatusWaiting, env.Status)

	require.NoError(t, s.manager.UpdateQRCode("2@abc,def"))
	code, env = s.do(t, http.MethodGet, "/api/v1/qrcode-base64", nil)
	require.Equal(t, http.StatusOK, code)
	var qr map[string]string
	decodeData(t, env, &qr)
	assert.True(t, strings.HasPrefix(qr["qrcode"], "data:image/png;base64,"))
	assert.Equal(t, services.StatusQRReady, qr["status"])

	s.manager.SetConnected()
	code, env = s.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, code)
	var status services.ConnectionStatus
	decodeData(t, env, &status)
	assert.Equal(t, services.StatusReady, status.Status)
}

func TestWebSocket_ReceivesBroadcast(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	s.hub.Broadcast(wsnotify.NewContactEvent(wsnotify.EventReply, "c1", "Maria", "Oi!", 0, time.Now()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event struct {
		Type    string                  `json:"type"`
		Payload wsnotify.ContactPayload `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, wsnotify.EventReply, event.Type)
	assert.Equal(t, "c1", event.Payload.ContactID)
	assert.Equal(t, "Oi!", event.Payload.Content)
}
