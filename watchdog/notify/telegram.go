package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// TelegramTransport posts to the Bot API sendMessage method.
type TelegramTransport struct {
	url      string
	chatID   string
	threadID int64
	client   *http.Client
}

func NewTelegramTransport(apiURL, token, chatID string, threadID int64, timeout time.Duration) *TelegramTransport {
	return &TelegramTransport{
		url:      fmt.Sprintf("%s/bot%s/sendMessage", apiURL, token),
		chatID:   chatID,
		threadID: threadID,
		client:   &http.Client{Timeout: timeout},
	}
}

func (t *TelegramTransport) body(text string) ([]byte, error) {
	body := []byte(`{}`)

	body, err := sjson.SetBytes(body, "chat_id", t.chatID)
	if err != nil {
		return nil, err
	}

	body, err = sjson.SetBytes(body, "text", text)
	if err != nil {
		return nil, err
	}

	if t.threadID != 0 {
		body, err = sjson.SetBytes(body, "message_thread_id", t.threadID)
		if err != nil {
			return nil, err
		}
	}

	return body, nil
}

func (t *TelegramTransport) Send(ctx context.Context, text string) error {
	body, err := t.body(text)
	if err != nil {
		return fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the bot token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if desc := gjson.GetBytes(respBody, "description"); desc.Exists() {
			return fmt.Errorf("HTTP %d: %s", res.StatusCode, desc.String())
		}
		return fmt.Errorf("HTTP %d: %s", res.StatusCode, http.StatusText(res.StatusCode))
	}

	return nil
}
