package stubserver

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sol1corejz/voidshop/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("balance request not found")
	ErrWrongStatus     = errors.New("request is not in the required status")
	ErrCaptchaExpired  = errors.New("captcha expired or unknown")
)

// Store holds all stub backend state in memory. It exists so the client
// can be developed and tested with zero infrastructure; nothing here
// survives a restart, which is the point.
type Store struct {
	mu sync.Mutex

	nextUserID int
	users      map[int64]models.User
	requests   map[string]models.BalanceRequest
	order      []string
	captchas   map[string]captchaEntry

	cities     []string
	categories []models.Category
	products   []models.Product
	methods    []models.PaymentMethod
}

type captchaEntry struct {
	answer  string
	expires time.Time
}

func NewStore() *Store {
	s := &Store{
		nextUserID: 1,
		users:      make(map[int64]models.User),
		requests:   make(map[string]models.BalanceRequest),
		captchas:   make(map[string]captchaEntry),
	}
	s.seed()
	return s
}

func (s *Store) seed() {
	s.cities = []string{"Москва", "Санкт-Петербург", "Казань", "Новосибирск", "Екатеринбург"}

	s.categories = []models.Category{
		{Slug: "electronics", Name: "Электроника", Icon: "📱", Count: 3},
		{Slug: "clothes", Name: "Одежда", Icon: "👕", Count: 2},
		{Slug: "books", Name: "Книги", Icon: "📚", Count: 1},
	}

	s.products = []models.Product{
		{ID: 1, Title: "Беспроводные наушники", Price: 4990, OldPrice: 6990, Category: "electronics", City: "Москва", StoreName: "TechPoint", Views: 120},
		{ID: 2, Title: "Смарт-часы", Price: 12990, Category: "electronics", City: "Москва", StoreName: "TechPoint", Views: 87},
		{ID: 3, Title: "Портативная колонка", Price: 3490, Category: "electronics", City: "Казань", StoreName: "SoundLab", Views: 45},
		{ID: 4, Title: "Худи оверсайз", Price: 2990, Category: "clothes", City: "Москва", StoreName: "StreetWear", Views: 210},
		{ID: 5, Title: "Футболка базовая", Price: 990, Category: "clothes", City: "Санкт-Петербург", StoreName: "StreetWear", Views: 64},
		{ID: 6, Title: "Сборник рассказов", Price: 690, Category: "books", City: "Санкт-Петербург", StoreName: "BookNook", Views: 12},
	}

	s.methods = []models.PaymentMethod{
		{
			ID: "card", Name: "Банковская карта", Icon: "💳",
			Description: "Visa, MasterCard, МИР",
			MinAmount:   100, MaxAmount: 100000,
			ProcessingTime: "5-15 минут", Enabled: true,
		},
		{
			ID: "crypto", Name: "Криптовалюта", Icon: "₿",
			Description: "BTC, USDT",
			MinAmount:   500, MaxAmount: 100000,
			ProcessingTime: "15-60 минут", Enabled: true,
		},
		{
			ID: "sbp", Name: "СБП", Icon: "🏦",
			Description: "Система быстрых платежей",
			MinAmount:   100, MaxAmount: 50000,
			ProcessingTime: "Скоро", Enabled: false,
		},
	}
}

func (s *Store) IssueCaptcha(token, answer string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captchas[token] = captchaEntry{answer: answer, expires: time.Now().Add(ttl)}
}

func (s *Store) VerifyCaptcha(token, answer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.captchas[token]
	if !ok || time.Now().After(entry.expires) {
		delete(s.captchas, token)
		return false, ErrCaptchaExpired
	}
	delete(s.captchas, token)
	return strings.EqualFold(strings.TrimSpace(answer), entry.answer), nil
}

func (s *Store) UpsertUser(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.TgID]
	if ok {
		existing.Username = user.Username
		existing.FirstName = user.FirstName
		existing.LastName = user.LastName
		existing.City = user.City
		existing.AvatarURL = user.AvatarURL
		existing.LanguageCode = user.LanguageCode
		existing.IsPremium = user.IsPremium
		existing.LastActive = time.Now().UTC()
		s.users[user.TgID] = existing
		return existing
	}

	user.ID = s.nextUserID
	s.nextUserID++
	user.RegisteredAt = time.Now().UTC()
	user.LastActive = user.RegisteredAt
	s.users[user.TgID] = user
	return user
}

func (s *Store) GetUser(tgID int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[tgID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *Store) Cities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cities...)
}

func (s *Store) Categories() []models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Category(nil), s.categories...)
}

func (s *Store) Methods() []models.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentMethod(nil), s.methods...)
}

func (s *Store) MethodByID(id string) (models.PaymentMethod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.methods {
		if m.ID == id {
			return m, true
		}
	}
	return models.PaymentMethod{}, false
}

func (s *Store) SearchProducts(query, category, city string, limit, offset int) []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))
	var matched []models.Product
	for _, p := range s.products {
		if query != "" && !strings.Contains(strings.ToLower(p.Title), query) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		if city != "" && p.City != city {
			continue
		}
		matched = append(matched, p)
	}

	if offset >= len(matched) {
		return nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

// generateOrderID mirrors the production format: VB + unix millis + three
// random digits.
func generateOrderID() string {
	return fmt.Sprintf("VB%d%d", time.Now().UnixMilli(), 100+rand.Intn(900))
}

func (s *Store) CreateRequest(tgID int64, amount float64, method string, details map[string]any) (models.BalanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[tgID]
	if !ok {
		return models.BalanceRequest{}, ErrUserNotFound
	}

	request := models.BalanceRequest{
		OrderID:        generateOrderID(),
		TgID:           tgID,
		Amount:         amount,
		Method:         method,
		Status:         models.PENDING,
		CreatedAt:      time.Now().UTC(),
		PaymentDetails: details,
		UserInfo: map[string]string{
			"name":     strings.TrimSpace(user.FirstName + " " + user.LastName),
			"username": user.Username,
		},
	}
	s.requests[request.OrderID] = request
	s.order = append(s.order, request.OrderID)
	return request, nil
}

func (s *Store) AttachReceipt(orderID, filename string) (models.BalanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[orderID]
	if !ok {
		return models.BalanceRequest{}, ErrRequestNotFound
	}
	if request.Status != models.PENDING && request.Status != models.RECEIPT_UPLOADED {
		return models.BalanceRequest{}, ErrWrongStatus
	}
	request.Status = models.RECEIPT_UPLOADED
	request.ReceiptFilename = filename
	s.requests[orderID] = request
	return request, nil
}

func (s *Store) MarkPaid(orderID string) (models.BalanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[orderID]
	if !ok {
		return models.BalanceRequest{}, ErrRequestNotFound
	}
	if request.Status != models.RECEIPT_UPLOADED {
		return models.BalanceRequest{}, ErrWrongStatus
	}
	request.Status = models.WAITING_ADMIN
	s.requests[orderID] = request
	return request, nil
}

// Resolve applies the admin decision. Approval credits the user balance.
func (s *Store) Resolve(orderID string, approve bool, comment string) (models.BalanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[orderID]
	if !ok {
		return models.BalanceRequest{}, ErrRequestNotFound
	}
	if request.Status != models.WAITING_ADMIN && request.Status != models.RECEIPT_UPLOADED {
		return models.BalanceRequest{}, ErrWrongStatus
	}

	now := time.Now().UTC()
	request.ProcessedAt = &now
	request.AdminComment = comment
	if approve {
		request.Status = models.APPROVED
		if user, ok := s.users[request.TgID]; ok {
			user.Balance += request.Amount
			s.users[request.TgID] = user
		}
	} else {
		request.Status = models.REJECTED
	}
	s.requests[orderID] = request
	return request, nil
}

func (s *Store) RequestsByUser(tgID int64) []models.BalanceRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.BalanceRequest
	for _, orderID := range s.order {
		if request, ok := s.requests[orderID]; ok && request.TgID == tgID {
			out = append(out, request)
		}
	}
	return out
}
