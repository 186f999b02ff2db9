package models

import (
	"time"
)

var (
	PENDING          = "pending"
	RECEIPT_UPLOADED = "receipt_uploaded"
	WAITING_ADMIN    = "waiting_admin"
	APPROVED         = "approved"
	REJECTED         = "rejected"
)

// ActiveStatuses are the statuses a user can still act on from the client.
var ActiveStatuses = []string{PENDING, RECEIPT_UPLOADED, WAITING_ADMIN}

func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type User struct {
	ID           int       `json:"id"`
	TgID         int64     `json:"tg_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	City         string    `json:"city"`
	Balance      float64   `json:"balance"`
	IsVerified   bool      `json:"is_verified"`
	AvatarURL    string    `json:"avatar_url"`
	LanguageCode string    `json:"language_code"`
	IsPremium    bool      `json:"is_premium"`
	RegisteredAt time.Time `json:"registered_at"`
	LastActive   time.Time `json:"last_active"`
}

type PaymentMethod struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Icon           string  `json:"icon"`
	Description    string  `json:"description"`
	MinAmount      float64 `json:"min_amount"`
	MaxAmount      float64 `json:"max_amount"`
	Commission     float64 `json:"commission"`
	ProcessingTime string  `json:"processing_time"`
	Enabled        bool    `json:"enabled"`
}

type BalanceRequest struct {
	OrderID         string            `json:"order_id"`
	TgID            int64             `json:"tg_id"`
	Amount          float64           `json:"amount"`
	Method          string            `json:"method"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`
	PaymentDetails  map[string]any    `json:"payment_details,omitempty"`
	UserInfo        map[string]string `json:"user_info,omitempty"`
	ReceiptFilename string            `json:"receipt_filename,omitempty"`
	AdminComment    string            `json:"admin_comment,omitempty"`
}

type Product struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	OldPrice  float64 `json:"old_price,omitempty"`
	Category  string  `json:"category"`
	City      string  `json:"city"`
	MainImage string  `json:"main_image,omitempty"`
	StoreName string  `json:"store_name,omitempty"`
	Views     int     `json:"views"`
}

type Category struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Count int    `json:"count"`
}

type Captcha struct {
	Token string `json:"token"`
	Image string `json:"image"`
}

// LocalOrder is a checkout order kept in the client-side ledger. Display
// only: the backend record wins whenever both exist.
type LocalOrder struct {
	ID        string    `json:"id"`
	ProductID int       `json:"product_id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
}
