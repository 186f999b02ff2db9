package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sol1corejz/voidshop/internal/models"
)

// UserPayload is the upsert body for POST /api/user. Empty optional fields
// are sent as null so the backend's validators never see blank strings.
type UserPayload struct {
	TgID         int64   `json:"tg_id"`
	Username     *string `json:"username"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	City         string  `json:"city"`
	PhotoURL     *string `json:"photo_url"`
	LanguageCode string  `json:"language_code"`
	IsPremium    bool    `json:"is_premium"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func NewUserPayload(tgID int64, username, firstName, lastName, city, photoURL, languageCode string, isPremium bool) UserPayload {
	return UserPayload{
		TgID:         tgID,
		Username:     optional(username),
		FirstName:    optional(firstName),
		LastName:     optional(lastName),
		City:         strings.TrimSpace(city),
		PhotoURL:     optional(photoURL),
		LanguageCode: languageCode,
		IsPremium:    isPremium,
	}
}

func (c *Client) CreateOrUpdateUser(ctx context.Context, payload UserPayload) (models.User, error) {
	if payload.TgID <= 0 {
		return models.User{}, &APIError{Message: "invalid telegram id", Status: 400, Data: map[string]any{"type": "validation"}}
	}
	if payload.City == "" {
		payload.City = "Москва"
	}
	if payload.LanguageCode == "" {
		payload.LanguageCode = "ru"
	}

	var user models.User
	err := c.do(ctx, "/api/user", requestOptions{
		method:  http.MethodPost,
		body:    payload,
		timeout: 10 * time.Second,
	}, &user)
	return user, err
}

func (c *Client) GetCities(ctx context.Context) ([]string, error) {
	var result struct {
		Cities []string `json:"cities"`
	}
	err := c.do(ctx, "/api/cities", requestOptions{timeout: 5 * time.Second}, &result)
	return result.Cities, err
}
