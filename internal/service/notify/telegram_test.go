package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type botServer struct {
	mu      sync.Mutex
	methods []string
	texts   []string
	fail    bool
}

func (b *botServer) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parts := strings.Split(r.URL.Path, "/")
	method := parts[len(parts)-1]
	b.methods = append(b.methods, method)

	w.Header().Set("Content-Type", "application/json")
	if b.fail {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"ok":false,"description":"Bad Gateway"}`))
		return
	}

	switch method {
	case "sendMessage":
		r.ParseForm()
		b.texts = append(b.texts, r.PostForm.Get("text"))
	case "sendPhoto":
		r.ParseMultipartForm(1 << 20)
		b.texts = append(b.texts, r.FormValue("caption"))
	}
	w.Write([]byte(`{"ok":true,"result":{}}`))
}

func TestTelegram_LazyConnectThenSend(t *testing.T) {
	bot := &botServer{}
	srv := httptest.NewServer(http.HandlerFunc(bot.handler))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "123:abc", "42")
	require.NoError(t, tg.Send(context.Background(), Notification{Text: "Face detected!"}))
	require.NoError(t, tg.Send(context.Background(), Notification{Text: "again"}))

	assert.Equal(t, []string{"getMe", "sendMessage", "sendMessage"}, bot.methods)
	assert.Equal(t, []string{"Face detected!", "again"}, bot.texts)
}

func TestTelegram_SendsPhotoWhenScreenshotExists(t *testing.T) {
	bot := &botServer{}
	srv := httptest.NewServer(http.HandlerFunc(bot.handler))
	defer srv.Close()

	shot := filepath.Join(t.TempDir(), "shot.jpg")
	require.NoError(t, os.WriteFile(shot, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0644))

	tg := NewTelegram(srv.URL, "123:abc", "42")
	require.NoError(t, tg.Send(context.Background(), Notification{Text: "caption", ImagePath: shot}))
	assert.Equal(t, []string{"getMe", "sendPhoto"}, bot.methods)
	assert.Equal(t, []string{"caption"}, bot.texts)
}

func TestTelegram_ServerErrorFails(t *testing.T) {
	bot := &botServer{fail: true}
	srv := httptest.NewServer(http.HandlerFunc(bot.handler))
	defer srv.Close()

	err := NewTelegram(srv.URL, "123:abc", "42").Send(context.Background(), Notification{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad Gateway")
}

func TestTelegram_NotConfigured(t *testing.T) {
	assert.Error(t, NewTelegram("http://127.0.0.1:1", "", "").Send(context.Background(), Notification{}))
}

func TestMQTT_UnreachableBrokerFails(t *testing.T) {
	m := NewMQTT(MQTTConfig{Broker: "tcp://127.0.0.1:1", ClientID: "test", Topic: "alerts", Timeout: time.Second})
	defer m.Close()
	assert.Error(t, m.Send(context.Background(), Notification{Text: "x"}))

	assert.Error(t, NewMQTT(MQTTConfig{}).Send(context.Background(), Notification{}))
}
