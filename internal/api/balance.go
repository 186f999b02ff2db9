package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sol1corejz/voidshop/internal/models"
)

func formatTgID(tgID int64) string {
	return strconv.FormatInt(tgID, 10)
}

func (c *Client) GetPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := c.do(ctx, "/api/balance/methods", requestOptions{timeout: 5 * time.Second}, &methods)
	return methods, err
}

func (c *Client) CreateBalanceRequest(ctx context.Context, tgID int64, amount float64, method string) (models.BalanceRequest, error) {
	if tgID <= 0 {
		return models.BalanceRequest{}, &APIError{Message: "invalid telegram id", Status: 400, Data: map[string]any{"type": "validation"}}
	}
	if amount <= 0 {
		return models.BalanceRequest{}, &APIError{Message: "invalid amount", Status: 400, Data: map[string]any{"type": "validation"}}
	}
	if method == "" {
		method = "card"
	}

	var request models.BalanceRequest
	err := c.do(ctx, "/api/balance/create", requestOptions{
		method: http.MethodPost,
		body: map[string]any{
			"tg_id":  tgID,
			"amount": amount,
			"method": method,
		},
		timeout: 10 * time.Second,
	}, &request)
	return request, err
}

func (c *Client) UploadReceipt(ctx context.Context, orderID string, filename string, mimeType string, content []byte) (models.BalanceRequest, error) {
	if orderID == "" {
		return models.BalanceRequest{}, &APIError{Message: "order id is required", Status: 400, Data: map[string]any{"type": "validation"}}
	}
	if len(content) == 0 {
		return models.BalanceRequest{}, &APIError{Message: "receipt file is required", Status: 400, Data: map[string]any{"type": "validation"}}
	}

	var request models.BalanceRequest
	err := c.do(ctx, "/api/balance/upload-receipt/"+orderID, requestOptions{
		method: http.MethodPost,
		multipart: &multipartBody{
			field:    "file",
			filename: filename,
			mimeType: mimeType,
			content:  content,
		},
		timeout: 30 * time.Second,
	}, &request)
	return request, err
}

func (c *Client) MarkPaid(ctx context.Context, orderID string) (models.BalanceRequest, error) {
	if orderID == "" {
		return models.BalanceRequest{}, &APIError{Message: "order id is required", Status: 400, Data: map[string]any{"type": "validation"}}
	}

	var request models.BalanceRequest
	err := c.do(ctx, "/api/balance/mark-paid/"+orderID, requestOptions{
		method:  http.MethodPost,
		body:    map[string]any{},
		timeout: 8 * time.Second,
	}, &request)
	return request, err
}

func (c *Client) GetBalanceRequests(ctx context.Context, tgID int64) ([]models.BalanceRequest, error) {
	if tgID <= 0 {
		return nil, &APIError{Message: "invalid telegram id", Status: 400, Data: map[string]any{"type": "validation"}}
	}

	var requests []models.BalanceRequest
	err := c.do(ctx, "/api/balance/requests/"+formatTgID(tgID), requestOptions{timeout: 8 * time.Second}, &requests)
	return requests, err
}
