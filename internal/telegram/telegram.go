package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/sol1corejz/voidshop/internal/logger"
	"go.uber.org/zap"
)

// MaxPayloadSize is Telegram's WebApp sendData limit.
const MaxPayloadSize = 4096

var (
	ErrNoUser           = errors.New("no user in init data")
	ErrInvalidUser      = errors.New("invalid telegram user id")
	ErrInvalidSignature = errors.New("init data signature mismatch")
	ErrPayloadTooLarge  = errors.New("payload exceeds telegram limit")
)

type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
	PhotoURL     string `json:"photo_url"`
}

// ParseInitData extracts and validates the user from a WebApp initData
// query string.
func ParseInitData(initData string) (User, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return User{}, err
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return User{}, ErrNoUser
	}

	var user User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return User{}, err
	}
	if user.ID < 1 {
		return User{}, ErrInvalidUser
	}
	if user.LanguageCode == "" {
		user.LanguageCode = "ru"
	}
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	user.Username = strings.TrimSpace(user.Username)
	return user, nil
}

// ValidateInitData checks the HMAC-SHA256 signature Telegram attaches to
// initData: the data-check string is every field except hash, sorted,
// joined with newlines, keyed by HMAC("WebAppData", botToken).
func ValidateInitData(initData string, botToken string) error {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return err
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return ErrInvalidSignature
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(wantHash), []byte(gotHash)) {
		return ErrInvalidSignature
	}
	return nil
}

const (
	PayloadNewOrder            = "new_order"
	PayloadPaymentConfirmation = "payment_confirmation"
)

// Payload is the out-of-band message delivered to the reviewing operator.
type Payload struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Sender delivers an encoded payload to the operator channel.
type Sender interface {
	Send(data []byte) error
}

// SendToBot marshals and delivers a payload, refusing oversized messages
// with a logged failure instead of an error escaping to the caller's flow.
func SendToBot(sender Sender, payload Payload) bool {
	if sender == nil {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Error("encode bot payload", zap.Error(err))
		return false
	}
	if len(data) > MaxPayloadSize {
		logger.Log.Error("bot payload too large", zap.Int("size", len(data)), zap.String("type", payload.Type))
		return false
	}

	if err := sender.Send(data); err != nil {
		logger.Log.Error("send bot payload", zap.Error(err))
		return false
	}
	return true
}
