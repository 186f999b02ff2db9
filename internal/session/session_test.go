package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sol1corejz/voidshop/internal/api"
	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/prefs"
	"github.com/sol1corejz/voidshop/internal/telegram"
)

type fakeGateway struct {
	captchaFn func(ctx context.Context) (models.Captcha, error)
	verifyFn  func(ctx context.Context, token, answer string) (api.VerifyCaptchaResponse, error)
	upsertFn  func(ctx context.Context, payload api.UserPayload) (models.User, error)
	citiesFn  func(ctx context.Context) ([]string, error)

	upsertCalls int32
}

func (g *fakeGateway) GetCaptcha(ctx context.Context) (models.Captcha, error) {
	if g.captchaFn != nil {
		return g.captchaFn(ctx)
	}
	return models.Captcha{Token: "tok", Image: "aW1n"}, nil
}

func (g *fakeGateway) VerifyCaptcha(ctx context.Context, token, answer string) (api.VerifyCaptchaResponse, error) {
	if g.verifyFn != nil {
		return g.verifyFn(ctx, token, answer)
	}
	return api.VerifyCaptchaResponse{OK: true}, nil
}

func (g *fakeGateway) CreateOrUpdateUser(ctx context.Context, payload api.UserPayload) (models.User, error) {
	atomic.AddInt32(&g.upsertCalls, 1)
	if g.upsertFn != nil {
		return g.upsertFn(ctx, payload)
	}
	return models.User{ID: 1, TgID: payload.TgID, City: payload.City, Balance: 1500}, nil
}

func (g *fakeGateway) GetCities(ctx context.Context) ([]string, error) {
	if g.citiesFn != nil {
		return g.citiesFn(ctx)
	}
	return []string{"Москва", "Казань"}, nil
}

func autoSolve(models.Captcha) (string, error) { return "1234", nil }

func pickFirst(cities []string) (string, error) {
	if len(cities) == 0 {
		return "Москва", nil
	}
	return cities[0], nil
}

func newTestSession(t *testing.T, gateway Gateway) *Session {
	t.Helper()
	store, err := prefs.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(gateway, store, telegram.User{ID: 42, FirstName: "Иван", Username: "ivan"})
}

func TestInitHappyPath(t *testing.T) {
	t.Parallel()
	gateway := &fakeGateway{}
	s := newTestSession(t, gateway)

	if err := s.Init(context.Background(), autoSolve, pickFirst); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.Offline() {
		t.Error("session should be online")
	}
	user := s.User()
	if user.TgID != 42 || user.Balance != 1500 {
		t.Errorf("user: got %+v", user)
	}
	if user.City != "Москва" {
		t.Errorf("city: got %q, want Москва", user.City)
	}
}

func TestInitRunsOnce(t *testing.T) {
	t.Parallel()
	gateway := &fakeGateway{}
	s := newTestSession(t, gateway)

	if err := s.Init(context.Background(), autoSolve, pickFirst); err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background(), autoSolve, pickFirst); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second init: got %v, want ErrAlreadyRunning", err)
	}
	if got := atomic.LoadInt32(&gateway.upsertCalls); got != 1 {
		t.Errorf("upsert calls: got %d, want 1", got)
	}
}

func TestCaptchaFailsAfterThreeAttempts(t *testing.T) {
	t.Parallel()
	var attempts int32
	gateway := &fakeGateway{
		verifyFn: func(ctx context.Context, token, answer string) (api.VerifyCaptchaResponse, error) {
			atomic.AddInt32(&attempts, 1)
			return api.VerifyCaptchaResponse{OK: false, Reason: "wrong answer"}, nil
		},
	}
	s := newTestSession(t, gateway)

	if err := s.Init(context.Background(), autoSolve, pickFirst); !errors.Is(err, ErrCaptchaFailed) {
		t.Errorf("Init: got %v, want ErrCaptchaFailed", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("verify attempts: got %d, want 3", got)
	}
	if got := atomic.LoadInt32(&gateway.upsertCalls); got != 0 {
		t.Errorf("upsert calls: got %d, want 0", got)
	}
}

func TestSavedCitySkipsPicker(t *testing.T) {
	t.Parallel()
	store, err := prefs.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetCity("Казань"); err != nil {
		t.Fatal(err)
	}

	gateway := &fakeGateway{}
	s := New(gateway, store, telegram.User{ID: 42})

	picked := false
	pick := func(cities []string) (string, error) {
		picked = true
		return "Москва", nil
	}
	if err := s.Init(context.Background(), autoSolve, pick); err != nil {
		t.Fatal(err)
	}
	if picked {
		t.Error("picker must not run when a city is saved")
	}
	if got := s.User().City; got != "Казань" {
		t.Errorf("city: got %q, want Казань", got)
	}
}

func TestOfflineFallbackAndResync(t *testing.T) {
	t.Parallel()
	var down atomic.Bool
	down.Store(true)
	gateway := &fakeGateway{
		upsertFn: func(ctx context.Context, payload api.UserPayload) (models.User, error) {
			if down.Load() {
				return models.User{}, errors.New("connection refused")
			}
			return models.User{ID: 7, TgID: payload.TgID, City: payload.City, Balance: 900}, nil
		},
	}
	s := newTestSession(t, gateway)

	if err := s.Init(context.Background(), autoSolve, pickFirst); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !s.Offline() {
		t.Fatal("session should be offline")
	}
	user := s.User()
	if user.TgID != 42 || user.Balance != 0 || user.ID != 0 {
		t.Errorf("offline user: got %+v, want a synthesized zero-balance record", user)
	}

	if s.Resync(context.Background()) {
		t.Error("resync should fail while the backend is down")
	}

	down.Store(false)
	if !s.Resync(context.Background()) {
		t.Fatal("resync should succeed once the backend is up")
	}
	user = s.User()
	if user.ID != 7 || user.Balance != 900 {
		t.Errorf("resynced user: got %+v, want the backend record", user)
	}
	if s.Offline() {
		t.Error("session should be online after resync")
	}
}

func TestCityPickerStillRunsWhenCitiesUnavailable(t *testing.T) {
	t.Parallel()
	gateway := &fakeGateway{
		citiesFn: func(ctx context.Context) ([]string, error) {
			return nil, errors.New("down")
		},
	}
	s := newTestSession(t, gateway)

	var offered []string
	pick := func(cities []string) (string, error) {
		offered = cities
		return "Тверь", nil
	}
	if err := s.Init(context.Background(), autoSolve, pick); err != nil {
		t.Fatal(err)
	}
	if offered != nil {
		t.Errorf("offered cities: got %v, want nil", offered)
	}
	if got := s.User().City; got != "Тверь" {
		t.Errorf("city: got %q, want Тверь", got)
	}
}
