package sms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSender_Modes(t *testing.T) {
	s, err := NewSender(&Config{Mode: ModeLog}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &logSender{}, s)
	assert.NoError(t, s.Send(context.Background(), "01012345678", "hi"))

	_, err = NewSender(&Config{Mode: ModeMobizon}, discardLogger())
	assert.Error(t, err, "api key required")

	s, err = NewSender(&Config{Mode: ModeMobizon, MobizonAPIKey: "k"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &MobizonSender{}, s)

	_, err = NewSender(&Config{Mode: "carrier-pigeon"}, discardLogger())
	assert.Error(t, err)
}

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("SMS_MODE", "")
	t.Setenv("MOBIZON_BASE_URL", "")

	cfg := NewConfig()
	assert.Equal(t, ModeLog, cfg.Mode)
	assert.Equal(t, DefaultMobizonURL, cfg.MobizonBaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func newMobizon(t *testing.T, handler http.HandlerFunc) *MobizonSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMobizonSender(&Config{
		MobizonAPIKey:  "secret-key",
		MobizonFrom:    "EmoChat",
		MobizonBaseURL: srv.URL,
		Timeout:        time.Second,
	}, discardLogger())
}

func TestMobizonSender_Success(t *testing.T) {
	s := newMobizon(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "secret-key", r.PostForm.Get("apiKey"))
		assert.Equal(t, "01012345678", r.PostForm.Get("recipient"))
		assert.Equal(t, "[EmoChat] Your verification code is '4821'", r.PostForm.Get("text"))
		assert.Equal(t, "EmoChat", r.PostForm.Get("from"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":0,"data":{"messageId":"77"},"message":""}`)
	})

	err := s.Send(context.Background(), "01012345678", "[EmoChat] Your verification code is '4821'")
	assert.NoError(t, err)
}

func TestMobizonSender_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"gateway error code", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"code":1,"message":"invalid recipient"}`)
		}},
		{"http status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<html>`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMobizon(t, tt.handler)
			assert.Error(t, s.Send(context.Background(), "01012345678", "hi"))
		})
	}
}

func TestMobizonSender_ContextCancelled(t *testing.T) {
	s := newMobizon(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Send(ctx, "01012345678", "hi"))
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, topic string, event any) error
	topic       string
	event       any
}

func (m *mockPublisher) PublishSync(ctx context.Context, topic string, event any) error {
	m.topic = topic
	m.event = event
	if m.publishFunc != nil {
		return m.publishFunc(ctx, topic, event)
	}
	return nil
}

func TestKafkaSender(t *testing.T) {
	pub := &mockPublisher{}
	s := NewKafkaSender(pub, "sms-events", discardLogger())

	require.NoError(t, s.Send(context.Background(), "01012345678", "hello"))
	assert.Equal(t, "sms-events", pub.topic)

	event, ok := pub.event.(Event)
	require.True(t, ok)
	assert.NotEmpty(t, event.MessageID)
	assert.Equal(t, TypeVerificationCode, event.EventType)
	assert.Equal(t, "01012345678", event.Phone)
	assert.Equal(t, "hello", event.Message)

	pub.publishFunc = func(ctx context.Context, topic string, event any) error {
		return errors.New("broker unavailable")
	}
	assert.Error(t, s.Send(context.Background(), "01012345678", "hello"))
}
