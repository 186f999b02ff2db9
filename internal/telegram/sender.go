package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BotSender delivers operator payloads through the Bot API sendMessage
// endpoint, the channel the reviewing bot listens on.
type BotSender struct {
	token  string
	chatID string
	base   string
	http   *http.Client
}

func NewBotSender(token, chatID string) *BotSender {
	return &BotSender{
		token:  token,
		chatID: chatID,
		base:   "https://api.telegram.org",
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BotSender) Send(data []byte) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    string(data),
	})
	if err != nil {
		return err
	}

	resp, err := s.http.Post(
		fmt.Sprintf("%s/bot%s/sendMessage", s.base, s.token),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bot api status %d", resp.StatusCode)
	}
	return nil
}
