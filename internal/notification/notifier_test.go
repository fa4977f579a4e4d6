package notification

import (
	"bytes"
	"context"
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

	"spreadwatch/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Send(ctx context.Context, a Alert) error {
	s.calls++
	return s.err
}

func sampleAlert() Alert {
	ev := model.AlertEvent{ID: "a1", Direction: model.Upper, Gear: 16.5, MarkSpread: 16.7, DirectionalSpread: 16.1}
	return Alert{Level: AlertWarning, Title: "PAXG new high premium >= 16.00", Message: "Gear: 16.50", Event: &ev}
}

func TestAlert_Text(t *testing.T) {
	assert.Equal(t, "t\nm", Alert{Title: "t", Message: "m"}.Text())
	assert.Equal(t, "m", Alert{Message: "m"}.Text())
}

func TestLogNotifier_Send(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Send(context.Background(), sampleAlert()))

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	require.NoError(t, NewLogNotifier(log).Send(context.Background(), sampleAlert()))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARNING", rec["alert_level"])
	assert.Equal(t, "PAXG new high premium >= 16.00\nGear: 16.50", rec["text"])
	assert.Equal(t, "notify", rec["component"])
}

func TestMulti_AttemptsAllAndJoinsErrors(t *testing.T) {
	a := &stubNotifier{err: errors.New("down")}
	b := &stubNotifier{}
	c := &stubNotifier{err: errors.New("rate limited")}

	err := Multi{a, b, c}.Send(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)

	assert.NoError(t, Multi{b}.Send(context.Background(), sampleAlert()))
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookNotifier(srv.URL).Send(context.Background(), sampleAlert()))
	assert.Equal(t, "WARNING", got["level"])
	assert.Equal(t, "Gear: 16.50", got["message"])
	assert.Equal(t, "PAXG new high premium >= 16.00\nGear: 16.50", got["text"])
	event, ok := got["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upper", event["direction"])
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

// fakeBotAPI answers getMe and sendMessage like the Bot API does.
func fakeBotAPI(t *testing.T, sent *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"gear","username":"gear_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			*sent = append(*sent, r.PostForm.Get("chat_id")+"|"+r.PostForm.Get("text"))
			mu.Unlock()
			io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTelegramNotifier_Send(t *testing.T) {
	var sent []string
	srv := fakeBotAPI(t, &sent)

	tg, err := NewTelegramNotifier(TelegramConfig{
		BotToken: "123:abc",
		ChatID:   "42",
		Endpoint: srv.URL + "/bot%s/%s",
	})
	require.NoError(t, err)

	require.NoError(t, tg.Send(context.Background(), sampleAlert()))
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "42|"))
	assert.Contains(t, sent[0], `16\.50`, "MarkdownV2 escaping applied")
}

func TestTelegramNotifier_RejectsMalformedConfig(t *testing.T) {
	_, err := NewTelegramNotifier(TelegramConfig{BotToken: "no-colon", ChatID: "1"})
	assert.Error(t, err)

	_, err = NewTelegramNotifier(TelegramConfig{BotToken: "1:x"})
	assert.Error(t, err)
}

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Send(context.Background(), sampleAlert()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Seq   int64 `json:"seq"`
		Alert Alert `json:"alert"`
	}
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, int64(1), env.Seq)
	assert.Equal(t, "Gear: 16.50", env.Alert.Message)
}

func TestHub_ReplaysLatestOnConnect(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.Send(context.Background(), sampleAlert()))

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "PAXG new high premium")
}
