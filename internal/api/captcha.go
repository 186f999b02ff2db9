package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sol1corejz/voidshop/internal/models"
)

type VerifyCaptchaResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (c *Client) GetCaptcha(ctx context.Context) (models.Captcha, error) {
	var captcha models.Captcha
	err := c.do(ctx, "/api/captcha", requestOptions{timeout: 10 * time.Second}, &captcha)
	return captcha, err
}

func (c *Client) VerifyCaptcha(ctx context.Context, token string, answer string) (VerifyCaptchaResponse, error) {
	if token == "" || answer == "" {
		return VerifyCaptchaResponse{}, &APIError{Message: "token and answer are required", Status: 400, Data: map[string]any{"type": "validation"}}
	}

	var result VerifyCaptchaResponse
	err := c.do(ctx, "/api/verify_captcha", requestOptions{
		method: http.MethodPost,
		body: map[string]string{
			"token":  token,
			"answer": strings.TrimSpace(answer),
		},
		timeout: 8 * time.Second,
	}, &result)
	return result, err
}
