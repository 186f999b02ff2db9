package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sol1corejz/voidshop/internal/api"
	"github.com/sol1corejz/voidshop/internal/logger"
	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/prefs"
	"github.com/sol1corejz/voidshop/internal/telegram"
	"go.uber.org/zap"
)

const (
	userTimeout     = 5 * time.Second
	captchaAttempts = 3
)

var (
	ErrCaptchaFailed  = errors.New("captcha verification failed")
	ErrAlreadyRunning = errors.New("session already initialized")
)

// Gateway is the slice of the API client the session needs.
type Gateway interface {
	GetCaptcha(ctx context.Context) (models.Captcha, error)
	VerifyCaptcha(ctx context.Context, token string, answer string) (api.VerifyCaptchaResponse, error)
	CreateOrUpdateUser(ctx context.Context, payload api.UserPayload) (models.User, error)
	GetCities(ctx context.Context) ([]string, error)
}

// CaptchaSolver presents a challenge and returns the user's answer.
type CaptchaSolver func(models.Captcha) (string, error)

// CityPicker presents the available cities and returns the selection.
type CityPicker func([]string) (string, error)

// Session runs the one-shot app initialization for a single Telegram
// identity: captcha gate, city selection, then the user upsert. When the
// backend is unreachable the session degrades to a locally synthesized
// offline user with zero balance; a later successful sync discards that
// user entirely and adopts the backend record.
type Session struct {
	mu sync.Mutex

	gateway Gateway
	prefs   *prefs.Store
	tgUser  telegram.User

	user        models.User
	offline     bool
	initialized bool
}

func New(gateway Gateway, store *prefs.Store, tgUser telegram.User) *Session {
	return &Session{
		gateway: gateway,
		prefs:   store,
		tgUser:  tgUser,
	}
}

// Init executes the initialization sequence exactly once per session,
// independent of how many times the UI asks for it.
func (s *Session) Init(ctx context.Context, solve CaptchaSolver, pickCity CityPicker) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.initialized = true
	s.mu.Unlock()

	if err := s.passCaptcha(ctx, solve); err != nil {
		return err
	}

	city, err := s.resolveCity(ctx, pickCity)
	if err != nil {
		return err
	}

	s.syncUser(ctx, city)
	return nil
}

func (s *Session) passCaptcha(ctx context.Context, solve CaptchaSolver) error {
	for attempt := 0; attempt < captchaAttempts; attempt++ {
		captcha, err := s.gateway.GetCaptcha(ctx)
		if err != nil {
			return err
		}

		answer, err := solve(captcha)
		if err != nil {
			return err
		}

		result, err := s.gateway.VerifyCaptcha(ctx, captcha.Token, answer)
		if err != nil {
			return err
		}
		if result.OK {
			return nil
		}
		logger.Log.Info("captcha rejected", zap.String("reason", result.Reason), zap.Int("attempt", attempt+1))
	}
	return ErrCaptchaFailed
}

func (s *Session) resolveCity(ctx context.Context, pickCity CityPicker) (string, error) {
	if saved := s.prefs.City(); saved != "" {
		return saved, nil
	}

	cities, err := s.gateway.GetCities(ctx)
	if err != nil {
		logger.Log.Warn("load cities", zap.Error(err))
		cities = nil
	}

	city, err := pickCity(cities)
	if err != nil {
		return "", err
	}
	if err := s.prefs.SetCity(city); err != nil {
		logger.Log.Warn("persist city", zap.Error(err))
	}
	return city, nil
}

// syncUser upserts the backend user record, falling back to a degraded
// offline user when the backend is unreachable.
func (s *Session) syncUser(ctx context.Context, city string) {
	ctx, cancel := context.WithTimeout(ctx, userTimeout)
	defer cancel()

	payload := api.NewUserPayload(
		s.tgUser.ID,
		s.tgUser.Username,
		s.tgUser.FirstName,
		s.tgUser.LastName,
		city,
		s.tgUser.PhotoURL,
		s.tgUser.LanguageCode,
		s.tgUser.IsPremium,
	)

	user, err := s.gateway.CreateOrUpdateUser(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		logger.Log.Warn("backend unreachable, entering offline mode", zap.Error(err))
		s.offline = true
		s.user = models.User{
			TgID:      s.tgUser.ID,
			Username:  s.tgUser.Username,
			FirstName: s.tgUser.FirstName,
			LastName:  s.tgUser.LastName,
			City:      city,
			Balance:   0,
			AvatarURL: s.tgUser.PhotoURL,
		}
		return
	}
	s.offline = false
	s.user = user
}

// Resync retries the upsert after offline startup. On success the locally
// synthesized user is discarded, never merged: the backend record is the
// sole source of truth.
func (s *Session) Resync(ctx context.Context) bool {
	s.mu.Lock()
	if !s.offline {
		s.mu.Unlock()
		return true
	}
	city := s.user.City
	s.mu.Unlock()

	s.syncUser(ctx, city)

	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.offline
}

func (s *Session) User() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}
