package stubserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/sol1corejz/voidshop/internal/logger"
	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/receipt"
	"go.uber.org/zap"
)

const captchaTTL = 5 * time.Minute

func detail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"detail": message})
}

func (s *Server) getCaptchaHandler(c *fiber.Ctx) error {
	answer := fmt.Sprintf("%04d", rand.Intn(10000))
	token := uuid.New().String()
	s.store.IssueCaptcha(token, answer, captchaTTL)

	// The real backend renders a distorted PNG; the stub just encodes the
	// answer text so a terminal client can decode and display it.
	return c.JSON(models.Captcha{
		Token: token,
		Image: base64.StdEncoding.EncodeToString([]byte(answer)),
	})
}

func (s *Server) verifyCaptchaHandler(c *fiber.Ctx) error {
	var body struct {
		Token  string `json:"token"`
		Answer string `json:"answer"`
	}
	if err := c.BodyParser(&body); err != nil {
		return detail(c, fiber.StatusBadRequest, "invalid request body")
	}

	ok, err := s.store.VerifyCaptcha(body.Token, body.Answer)
	if err != nil {
		return c.JSON(fiber.Map{"ok": false, "reason": "captcha expired"})
	}
	if !ok {
		return c.JSON(fiber.Map{"ok": false, "reason": "wrong answer"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) upsertUserHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	select {
	case <-ctx.Done():
		logger.Log.Warn("Context canceled or timeout exceeded")
		return detail(c, fiber.StatusRequestTimeout, "request timed out")
	default:
		var body struct {
			TgID         int64   `json:"tg_id"`
			Username     *string `json:"username"`
			FirstName    *string `json:"first_name"`
			LastName     *string `json:"last_name"`
			City         string  `json:"city"`
			PhotoURL     *string `json:"photo_url"`
			LanguageCode string  `json:"language_code"`
			IsPremium    bool    `json:"is_premium"`
		}
		if err := c.BodyParser(&body); err != nil {
			return detail(c, fiber.StatusBadRequest, "invalid request body")
		}
		if body.TgID <= 0 {
			return detail(c, fiber.StatusBadRequest, "tg_id is required")
		}

		deref := func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		}

		user := s.store.UpsertUser(models.User{
			TgID:         body.TgID,
			Username:     deref(body.Username),
			FirstName:    deref(body.FirstName),
			LastName:     deref(body.LastName),
			City:         body.City,
			AvatarURL:    deref(body.PhotoURL),
			LanguageCode: body.LanguageCode,
			IsPremium:    body.IsPremium,
		})
		logger.Log.Info("user upserted", zap.Int64("tg_id", user.TgID))
		return c.JSON(user)
	}
}

func (s *Server) getCitiesHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cities": s.store.Cities()})
}

func (s *Server) getCategoriesHandler(c *fiber.Ctx) error {
	return c.JSON(s.store.Categories())
}

func (s *Server) searchProductsHandler(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}

	products := s.store.SearchProducts(
		c.Query("query"),
		c.Query("category"),
		c.Query("city"),
		limit,
		offset,
	)
	if products == nil {
		products = []models.Product{}
	}
	return c.JSON(products)
}

func (s *Server) getMethodsHandler(c *fiber.Ctx) error {
	return c.JSON(s.store.Methods())
}

// paymentDetails returns the manual transfer requisites shown to the user
// for the chosen method.
func paymentDetails(methodID string) map[string]any {
	switch methodID {
	case "crypto":
		return map[string]any{
			"network": "TRC20",
			"wallet":  "TXk4vQ9mP2rL8nW5cY1sZ7hJ3dF6gB0aEu",
			"note":    "Отправьте точную сумму одним переводом",
		}
	default:
		return map[string]any{
			"bank":      "Т-Банк",
			"card":      "2200 7009 1234 5678",
			"recipient": "Иван К.",
			"note":      "Переведите точную сумму без комментария",
		}
	}
}

func (s *Server) createRequestHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	select {
	case <-ctx.Done():
		logger.Log.Warn("Context canceled or timeout exceeded")
		return detail(c, fiber.StatusRequestTimeout, "request timed out")
	default:
		var body struct {
			TgID   int64   `json:"tg_id"`
			Amount float64 `json:"amount"`
			Method string  `json:"method"`
		}
		if err := c.BodyParser(&body); err != nil {
			return detail(c, fiber.StatusBadRequest, "invalid request body")
		}
		if body.TgID <= 0 {
			return detail(c, fiber.StatusBadRequest, "tg_id is required")
		}

		method, ok := s.store.MethodByID(body.Method)
		if !ok {
			return detail(c, fiber.StatusBadRequest, "unknown payment method")
		}
		if !method.Enabled {
			return detail(c, fiber.StatusBadRequest, "payment method is disabled")
		}
		if body.Amount < method.MinAmount || body.Amount > method.MaxAmount {
			return detail(c, fiber.StatusBadRequest, fmt.Sprintf(
				"amount must be between %.0f and %.0f", method.MinAmount, method.MaxAmount))
		}

		request, err := s.store.CreateRequest(body.TgID, body.Amount, method.ID, paymentDetails(method.ID))
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return detail(c, fiber.StatusNotFound, "user not found")
			}
			logger.Log.Error("create balance request", zap.Error(err))
			return detail(c, fiber.StatusInternalServerError, "failed to create request")
		}

		logger.Log.Info("balance request created",
			zap.String("order_id", request.OrderID),
			zap.Float64("amount", request.Amount))
		return c.JSON(request)
	}
}

func (s *Server) uploadReceiptHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	select {
	case <-ctx.Done():
		logger.Log.Warn("Context canceled or timeout exceeded")
		return detail(c, fiber.StatusRequestTimeout, "request timed out")
	default:
		// Params returns a slice of fiber's reusable request buffer; copy it
		// before handing it to the store, which keeps it as a map key.
		orderID := utils.CopyString(c.Params("orderID"))

		file, err := c.FormFile("file")
		if err != nil {
			return detail(c, fiber.StatusBadRequest, "file field is required")
		}
		if file.Size > receipt.MaxFileSize {
			return detail(c, fiber.StatusRequestEntityTooLarge, "file exceeds 25 MB")
		}

		mimeType := file.Header.Get("Content-Type")
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = mimeType[:i]
		}
		if !receipt.IsAllowedType(mimeType) {
			return detail(c, fiber.StatusBadRequest, "unsupported file type")
		}

		request, err := s.store.AttachReceipt(orderID, file.Filename)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				return detail(c, fiber.StatusNotFound, "request not found")
			}
			return detail(c, fiber.StatusBadRequest, "request is not awaiting a receipt")
		}

		logger.Log.Info("receipt uploaded",
			zap.String("order_id", orderID),
			zap.String("filename", file.Filename))
		return c.JSON(request)
	}
}

func (s *Server) markPaidHandler(c *fiber.Ctx) error {
	orderID := utils.CopyString(c.Params("orderID"))

	request, err := s.store.MarkPaid(orderID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return detail(c, fiber.StatusNotFound, "request not found")
		}
		return detail(c, fiber.StatusBadRequest, "receipt must be uploaded first")
	}

	logger.Log.Info("request marked as paid", zap.String("order_id", orderID))
	return c.JSON(request)
}

func (s *Server) getRequestsHandler(c *fiber.Ctx) error {
	tgID, err := strconv.ParseInt(c.Params("tgID"), 10, 64)
	if err != nil || tgID <= 0 {
		return detail(c, fiber.StatusBadRequest, "invalid tg_id")
	}

	requests := s.store.RequestsByUser(tgID)
	if requests == nil {
		requests = []models.BalanceRequest{}
	}
	return c.JSON(requests)
}

// processRequestHandler stands in for the admin bot: it approves or rejects
// a pending request so status transitions can be exercised end to end.
func (s *Server) processRequestHandler(c *fiber.Ctx) error {
	var body struct {
		Approve bool   `json:"approve"`
		Comment string `json:"comment"`
	}
	if err := c.BodyParser(&body); err != nil {
		return detail(c, fiber.StatusBadRequest, "invalid request body")
	}

	request, err := s.store.Resolve(utils.CopyString(c.Params("orderID")), body.Approve, body.Comment)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return detail(c, fiber.StatusNotFound, "request not found")
		}
		return detail(c, fiber.StatusBadRequest, "request is already resolved")
	}

	logger.Log.Info("request resolved",
		zap.String("order_id", request.OrderID),
		zap.String("status", request.Status))
	return c.JSON(request)
}
