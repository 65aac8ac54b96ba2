package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scoutlink/internal/identity"
	"scoutlink/internal/realtime"
	"scoutlink/internal/repository"
	"scoutlink/internal/service"
)

type testAPI struct {
	router *gin.Engine
	jwt    *service.JWTService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := realtime.NewMemoryNotifier(nil)
	svc := service.NewMessagingService(
		zap.NewNop(),
		repository.NewMemoryMessageRepository(),
		repository.NewMemoryViewRepository(),
		&identity.MockDirectory{},
		hub,
		service.Limits{},
	)
	jwtSvc := service.NewJWTService("secreto-test", time.Minute)
	handler := NewMessagingHandler(zap.NewNop(), svc, hub)
	return &testAPI{router: NewRouter(zap.NewNop(), jwtSvc, handler), jwt: jwtSvc}
}

func (a *testAPI) do(t *testing.T, caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		token, err := a.jwt.IssueAccessToken(caller)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage)
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestSendMessageEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, "u1", http.MethodPost, "/messages", gin.H{"receiver_id": "u2", "content": "hi"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	var msg struct {
		ConversationKey string `json:"conversation_key"`
		Seq             int64  `json:"seq"`
	}
	if err := json.Unmarshal(body["message"], &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.ConversationKey != "u1_u2" || msg.Seq != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestSendMessageRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, "", http.MethodPost, "/messages", gin.H{"receiver_id": "u2", "content": "hi"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSendMessageToSelfReturns400(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, "u1", http.MethodPost, "/messages", gin.H{"receiver_id": "u1", "content": "hi"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInboxAndReadFlow(t *testing.T) {
	api := newTestAPI(t)

	if w := api.do(t, "u1", http.MethodPost, "/messages", gin.H{"receiver_id": "u2", "content": "hi"}); w.Code != http.StatusCreated {
		t.Fatalf("send: %d", w.Code)
	}

	// El inbox del receptor muestra 1 no leido con preview.
	w := api.do(t, "u2", http.MethodGet, "/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("inbox: %d", w.Code)
	}
	var items []struct {
		ConversationKey string `json:"conversation_key"`
		Unread          int    `json:"unread"`
		LastContent     string `json:"last_content"`
	}
	if err := json.Unmarshal(decodeBody(t, w)["items"], &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 1 || items[0].Unread != 1 || items[0].LastContent != "hi" {
		t.Fatalf("unexpected inbox: %+v", items)
	}

	// Confirmar lectura y verificar que el contador queda en cero.
	if w := api.do(t, "u2", http.MethodPost, "/conversations/u1_u2/read", gin.H{"up_to_seq": 1}); w.Code != http.StatusOK {
		t.Fatalf("mark read: %d %s", w.Code, w.Body.String())
	}
	w = api.do(t, "u2", http.MethodGet, "/conversations", nil)
	if err := json.Unmarshal(decodeBody(t, w)["items"], &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if items[0].Unread != 0 {
		t.Fatalf("expected unread 0 after read, got %d", items[0].Unread)
	}
}

func TestMarkReadZeroSeqIsAcknowledgedNoop(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, "u1", http.MethodPost, "/messages", gin.H{"receiver_id": "u2", "content": "hi"}); w.Code != http.StatusCreated {
		t.Fatalf("send: %d", w.Code)
	}

	// Confirmar hasta seq 0 no lee nada, pero es valido y responde ok.
	if w := api.do(t, "u2", http.MethodPost, "/conversations/u1_u2/read", gin.H{"up_to_seq": 0}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for zero up_to_seq, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetMessagesAuthorization(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, "u1", http.MethodPost, "/messages", gin.H{"receiver_id": "u2", "content": "hi"}); w.Code != http.StatusCreated {
		t.Fatalf("send: %d", w.Code)
	}

	if w := api.do(t, "u3", http.MethodGet, "/conversations/u1_u2/messages", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for third user, got %d", w.Code)
	}
	if w := api.do(t, "u2", http.MethodGet, "/conversations/u1_u2/messages", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for participant, got %d", w.Code)
	}
}

func TestGetMessagesNotFound(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, "u1", http.MethodGet, "/conversations/u1_u2/messages", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first send, got %d", w.Code)
	}
}

func TestStreamEventsRejectsNonParticipant(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, "u3", http.MethodGet, "/conversations/u1_u2/events", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
