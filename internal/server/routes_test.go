package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emochat/internal/registration"
	"emochat/internal/session"
)

type mockDB struct {
	status string
}

func (m *mockDB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row { return nil }
func (m *mockDB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}
func (m *mockDB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errors.New("not implemented")
}
func (m *mockDB) Migrate(ctx context.Context) error { return nil }
func (m *mockDB) Health() map[string]string         { return map[string]string{"status": m.status} }
func (m *mockDB) Close() error                      { return nil }

type stubDirectory struct {
	registered map[string]bool
}

func (d *stubDirectory) FindUserByPhone(ctx context.Context, phone string) (*registration.User, error) {
	if d.registered[phone] {
		return &registration.User{UID: "existing", Phone: phone}, nil
	}
	return nil, nil
}

type stubAccounts struct{}

func (stubAccounts) CreateAccount(ctx context.Context, email, password string) (string, error) {
	return "uid-42", nil
}

type recordingSender struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingSender) Send(ctx context.Context, phone, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingSender) code(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.messages)
	parts := strings.Split(r.messages[len(r.messages)-1], "'")
	require.Len(t, parts, 3)
	return parts[1]
}

type discardProfiles struct{}

func (discardProfiles) AddUser(ctx context.Context, user registration.User) error { return nil }

type testServer struct {
	handler http.Handler
	db      *mockDB
	sender  *recordingSender
	mgr     session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sender := &recordingSender{}
	mgr := session.NewManager(session.Dependencies{
		Directory: &stubDirectory{registered: map[string]bool{"01000000000": true}},
		Accounts:  stubAccounts{},
		Sender:    sender,
		Profiles:  discardProfiles{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &session.Config{
		IdleTTL:         time.Hour,
		JanitorInterval: time.Hour,
		TickInterval:    10 * time.Millisecond,
		TickMaxDuration: time.Minute,
		CallTimeout:     time.Second,
	})
	t.Cleanup(mgr.Shutdown)

	db := &mockDB{status: "up"}
	app := New(&Config{Port: 0, AllowedOrigins: []string{"http://localhost:5173"}}, db, mgr, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &testServer{handler: app.RegisterRoutes(), db: db, sender: sender, mgr: mgr}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			reader = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) ViewResponse {
	t.Helper()
	var v ViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) create(t *testing.T) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/registrations", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decodeView(t, w)
	require.NotEmpty(t, v.SessionID)
	return v.SessionID
}

func TestCreateAndGetRegistration(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(t, http.MethodGet, "/registrations/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, id, raw["session_id"])
	assert.Nil(t, raw["remaining_millis"])
	assert.Nil(t, raw["event"])
	assert.Equal(t, false, raw["verified"])
	assert.Equal(t, false, raw["agreed_to_privacy_policy"])
}

func TestUnknownRegistration(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/registrations/missing"},
		{http.MethodDelete, "/registrations/missing"},
		{http.MethodPost, "/registrations/missing/send-code"},
		{http.MethodPatch, "/registrations/missing/fields"},
	} {
		w := ts.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "registration session not found", resp.Error)
	}
}

func TestDeleteRegistration(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(t, http.MethodDelete, "/registrations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, ts.mgr.Count())

	w = ts.do(t, http.MethodGet, "/registrations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateFields_InvalidBody(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(t, http.MethodPatch, "/registrations/"+id+"/fields", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestSendCode_InvalidAndRegisteredPhone(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(t, http.MethodPatch, "/registrations/"+id+"/fields", map[string]string{"phone": "123"})
	require.Equal(t, http.StatusOK, w.Code)

	v := decodeView(t, ts.do(t, http.MethodPost, "/registrations/"+id+"/send-code", nil))
	require.NotNil(t, v.Event)
	assert.Equal(t, EventShowMessage, v.Event.Type)
	assert.Equal(t, registration.MsgInvalidPhone, v.Event.Message)

	ts.do(t, http.MethodPatch, "/registrations/"+id+"/fields", map[string]string{"phone": "01000000000"})
	v = decodeView(t, ts.do(t, http.MethodPost, "/registrations/"+id+"/send-code", nil))
	require.NotNil(t, v.Event)
	assert.Equal(t, registration.MsgPhoneRegistered, v.Event.Message)
	assert.Nil(t, v.RemainingMillis)
}

func TestRegistrationFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/registrations/" + id

	w := ts.do(t, http.MethodPatch, base+"/fields", map[string]string{
		"id":               "alice",
		"password":         "secret1",
		"password_confirm": "secret1",
		"nickname":         "Al",
		"phone":            "01012345678",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/activate", nil).Code)

	w = ts.do(t, http.MethodPost, base+"/send-code", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var raw struct {
		Event map[string]any `json:"event"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw.Event, "code", "code must stay server side")
	v := decodeView(t, w)
	require.NotNil(t, v.Event)
	assert.Equal(t, registration.MsgCodeSent, v.Event.Message)

	require.Eventually(t, func() bool {
		v := decodeView(t, ts.do(t, http.MethodGet, base, nil))
		return v.RemainingMillis != nil && *v.RemainingMillis > 0
	}, time.Second, 10*time.Millisecond, "ticks publish the countdown")

	ts.do(t, http.MethodPatch, base+"/fields", map[string]string{"code": ts.sender.code(t)})
	v = decodeView(t, ts.do(t, http.MethodPost, base+"/verify-code", nil))
	require.NotNil(t, v.Event)
	assert.Equal(t, registration.MsgVerified, v.Event.Message)
	assert.True(t, v.Verified)

	v = decodeView(t, ts.do(t, http.MethodPost, base+"/privacy-policy/toggle", nil))
	require.NotNil(t, v.Event)
	assert.Equal(t, EventShowPrivacyPolicyDialog, v.Event.Type)

	v = decodeView(t, ts.do(t, http.MethodPost, base+"/privacy-policy/agree", nil))
	require.NotNil(t, v.Event)
	assert.Equal(t, EventHideKeyboard, v.Event.Type)
	assert.True(t, v.AgreedToPrivacyPolicy)

	w = ts.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret1")

	v = decodeView(t, w)
	require.NotNil(t, v.Event)
	assert.Equal(t, EventNavigateBackWithResult, v.Event.Type)
	assert.Equal(t, "alice", v.Event.ID)
	require.NotNil(t, v.Event.User)
	assert.Equal(t, registration.User{UID: "uid-42", ID: "alice", Nickname: "Al", Phone: "01012345678"}, *v.Event.User)
}

func TestActivateDeactivate(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(t, http.MethodPost, "/registrations/"+id+"/activate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodPost, "/registrations/"+id+"/deactivate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Database map[string]string `json:"database"`
		Sessions int               `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "up", body.Database["status"])
	assert.Equal(t, 1, body.Sessions)

	ts.db.status = "down"
	w = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestShuttingDown(t *testing.T) {
	ts := newTestServer(t)
	ts.mgr.Shutdown()

	w := ts.do(t, http.MethodPost, "/registrations", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewEventResponse(t *testing.T) {
	assert.Nil(t, newEventResponse(nil))

	resp := newEventResponse(registration.SendVerificationCode{Phone: "01012345678", Code: "1234"})
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"send_verification_code"}`, string(b))

	resp = newEventResponse(registration.NavigateBackWithResult{ID: "bob", Password: "hunter22", User: registration.User{UID: "u"}})
	b, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hunter22")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
