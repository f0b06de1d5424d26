package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Telegram sends alerts through the Telegram Bot API. The bot token is
// verified with getMe on the first send.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string

	mu    sync.Mutex
	ready bool
}

func NewTelegram(apiURL, token, chatID string) *Telegram {
	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(15 * time.Second)
	return &Telegram{client: client, token: token, chatID: chatID}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, n Notification) error {
	if t.token == "" || t.chatID == "" {
		return errors.New("telegram bot token or chat id not configured")
	}
	if err := t.connect(ctx); err != nil {
		return err
	}

	if n.ImagePath != "" {
		if _, err := os.Stat(n.ImagePath); err == nil {
			return t.call(ctx, "sendPhoto", t.client.R().
				SetFormData(map[string]string{"chat_id": t.chatID, "caption": n.Text}).
				SetFile("photo", n.ImagePath))
		}
	}
	return t.call(ctx, "sendMessage", t.client.R().
		SetFormData(map[string]string{"chat_id": t.chatID, "text": n.Text}))
}

func (t *Telegram) connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		return nil
	}
	if err := t.call(ctx, "getMe", t.client.R()); err != nil {
		return fmt.Errorf("telegram bot unavailable: %w", err)
	}
	t.ready = true
	return nil
}

func (t *Telegram) call(ctx context.Context, method string, req *resty.Request) error {
	var out telegramResponse
	url := fmt.Sprintf("/bot%s/%s", t.token, method)

	var (
		resp *resty.Response
		err  error
	)
	req = req.SetContext(ctx).SetResult(&out).SetError(&out)
	if method == "getMe" {
		resp, err = req.Get(url)
	} else {
		resp, err = req.Post(url)
	}
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("%s returned %d: %s", method, resp.StatusCode(), out.Description)
	}
	return nil
}
