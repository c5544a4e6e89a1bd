package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramSenderSend(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	sender := NewTelegramSender("TOKEN", srv.URL, time.Second, zerolog.Nop())

	if err := sender.Send(context.Background(), "@whales", "hello"); err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Fatalf("请求路径不正确: %s", gotPath)
	}
	if gotPayload["chat_id"] != "@whales" || gotPayload["text"] != "hello" {
		t.Fatalf("payload 不正确: %+v", gotPayload)
	}
}

func TestTelegramSenderSendNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	sender := NewTelegramSender("TOKEN", srv.URL, time.Second, zerolog.Nop())

	if err := sender.Send(context.Background(), "@whales", "hello"); err == nil {
		t.Fatal("ok=false 应视为发送失败")
	}
}

func TestTelegramSenderSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewTelegramSender("TOKEN", srv.URL, time.Second, zerolog.Nop())

	if err := sender.Send(context.Background(), "@whales", "hello"); err == nil {
		t.Fatal("非 2xx 响应应视为发送失败")
	}
}

func TestTelegramSenderProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/getMe" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	sender := NewTelegramSender("TOKEN", srv.URL, time.Second, zerolog.Nop())

	if err := sender.Probe(context.Background()); err != nil {
		t.Fatalf("probe 失败: %v", err)
	}
}
