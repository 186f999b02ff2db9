package balance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sol1corejz/voidshop/internal/logger"
	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/notify"
	"github.com/sol1corejz/voidshop/internal/receipt"
	"github.com/sol1corejz/voidshop/internal/telegram"
	"go.uber.org/zap"
)

type Step string

const (
	StepMethods Step = "methods"
	StepAmount  Step = "amount"
	StepPayment Step = "payment"
	StepSuccess Step = "success"
	StepHistory Step = "history"
)

var (
	ErrBusy            = errors.New("another operation is in flight")
	ErrWrongStep       = errors.New("not available at this step")
	ErrMethodDisabled  = errors.New("payment method is disabled")
	ErrUnknownMethod   = errors.New("unknown payment method")
	ErrInvalidAmount   = errors.New("amount is outside the method limits")
	ErrNoRequest       = errors.New("no balance request in progress")
	ErrNoReceipt       = errors.New("no receipt file selected")
	ErrReceiptRequired = errors.New("upload the payment receipt first")
	ErrRequestResolved = errors.New("request is already resolved")
)

// FallbackMethod is used when the method list cannot be fetched.
var FallbackMethod = models.PaymentMethod{
	ID:             "card",
	Name:           "Банковская карта",
	Icon:           "💳",
	Description:    "Visa, MasterCard, МИР",
	MinAmount:      100,
	MaxAmount:      100000,
	Commission:     0,
	ProcessingTime: "5-15 минут",
	Enabled:        true,
}

// Backend is the slice of the API gateway the flow needs. *api.Client
// satisfies it.
type Backend interface {
	GetPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
	CreateBalanceRequest(ctx context.Context, tgID int64, amount float64, method string) (models.BalanceRequest, error)
	UploadReceipt(ctx context.Context, orderID string, filename string, mimeType string, content []byte) (models.BalanceRequest, error)
	MarkPaid(ctx context.Context, orderID string) (models.BalanceRequest, error)
	GetBalanceRequests(ctx context.Context, tgID int64) ([]models.BalanceRequest, error)
}

// Flow owns the balance top-up workflow: methods → amount → payment →
// success, with a parallel history view. All transitions and their side
// effects live here; the UI layer only renders flow state and forwards
// events.
type Flow struct {
	mu sync.Mutex

	backend  Backend
	notifier *notify.Queue
	sender   telegram.Sender

	tgID     int64
	userName string
	username string

	step           Step
	methods        []models.PaymentMethod
	selectedMethod string
	amountInput    string
	loading        bool

	payment        *models.BalanceRequest
	receiptFile    *receipt.File
	receiptPreview string
	uploadProgress int

	requests []models.BalanceRequest

	progressInterval time.Duration
	timers           []*time.Timer
	initialized      bool
	closed           bool
}

type Option func(*Flow)

// WithSender wires the out-of-band operator channel. Optional: without it
// the flow still works, admin notifications are just skipped.
func WithSender(sender telegram.Sender) Option {
	return func(f *Flow) { f.sender = sender }
}

// WithUserInfo carries display fields into operator payloads.
func WithUserInfo(name, username string) Option {
	return func(f *Flow) {
		f.userName = name
		f.username = username
	}
}

// WithProgressInterval overrides the simulated upload progress tick. Used
// by tests.
func WithProgressInterval(d time.Duration) Option {
	return func(f *Flow) { f.progressInterval = d }
}

func New(backend Backend, notifier *notify.Queue, tgID int64, opts ...Option) *Flow {
	f := &Flow{
		backend:          backend,
		notifier:         notifier,
		tgID:             tgID,
		step:             StepMethods,
		selectedMethod:   FallbackMethod.ID,
		progressInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Init loads payment methods and the user's request history. Runs its work
// once; later calls are no-ops regardless of how often the UI re-renders.
func (f *Flow) Init(ctx context.Context) {
	f.mu.Lock()
	if f.initialized || f.closed {
		f.mu.Unlock()
		return
	}
	f.initialized = true
	f.mu.Unlock()

	methods, err := f.backend.GetPaymentMethods(ctx)
	f.mu.Lock()
	if err != nil {
		logger.Log.Error("load payment methods", zap.Error(err))
		f.methods = []models.PaymentMethod{FallbackMethod}
		f.selectedMethod = FallbackMethod.ID
		f.mu.Unlock()
		f.notifier.Push("Ошибка загрузки методов пополнения", notify.TypeError)
	} else {
		f.methods = methods
		for _, m := range methods {
			if m.Enabled {
				f.selectedMethod = m.ID
				break
			}
		}
		f.mu.Unlock()
	}

	f.refreshRequests(ctx)
}

// refreshRequests reloads the request list, newest first. Best-effort: a
// failure here is logged and never rolls back the transition it follows.
func (f *Flow) refreshRequests(ctx context.Context) {
	requests, err := f.backend.GetBalanceRequests(ctx, f.tgID)
	if err != nil {
		logger.Log.Warn("refresh balance requests", zap.Error(err))
		return
	}

	sortRequests(requests)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.requests = requests
}

func sortRequests(requests []models.BalanceRequest) {
	for i := 1; i < len(requests); i++ {
		for j := i; j > 0 && requests[j].CreatedAt.After(requests[j-1].CreatedAt); j-- {
			requests[j], requests[j-1] = requests[j-1], requests[j]
		}
	}
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Flow) Methods() []models.PaymentMethod {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PaymentMethod, len(f.methods))
	copy(out, f.methods)
	return out
}

func (f *Flow) CurrentMethod() (models.PaymentMethod, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentMethodLocked()
}

func (f *Flow) currentMethodLocked() (models.PaymentMethod, bool) {
	for _, m := range f.methods {
		if m.ID == f.selectedMethod {
			return m, true
		}
	}
	return models.PaymentMethod{}, false
}

func (f *Flow) Requests() []models.BalanceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.BalanceRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// ActiveRequests returns requests the user can still act on.
func (f *Flow) ActiveRequests() []models.BalanceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BalanceRequest
	for _, r := range f.requests {
		if models.IsActiveStatus(r.Status) {
			out = append(out, r)
		}
	}
	return out
}

func (f *Flow) Payment() (models.BalanceRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payment == nil {
		return models.BalanceRequest{}, false
	}
	return *f.payment, true
}

func (f *Flow) UploadProgress() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadProgress
}

func (f *Flow) ReceiptPreview() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receiptPreview
}

// SelectMethod moves methods → amount. Disabled methods never transition.
func (f *Flow) SelectMethod(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepMethods {
		return ErrWrongStep
	}
	for _, m := range f.methods {
		if m.ID != id {
			continue
		}
		if !m.Enabled {
			return ErrMethodDisabled
		}
		f.selectedMethod = id
		f.step = StepAmount
		return nil
	}
	return ErrUnknownMethod
}

// SetAmountInput filters the raw field input down to digits and at most
// one decimal separator, mirroring what the amount field accepts.
func (f *Flow) SetAmountInput(raw string) {
	var b strings.Builder
	seenDot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			b.WriteRune(r)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.amountInput = b.String()
}

// Amount is the parsed value of the input; anything non-numeric is 0 and
// therefore never valid.
func (f *Flow) Amount() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.amountLocked()
}

func (f *Flow) amountLocked() float64 {
	value, err := strconv.ParseFloat(f.amountInput, 64)
	if err != nil {
		return 0
	}
	return value
}

func (f *Flow) IsValidAmount() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isValidAmountLocked()
}

func (f *Flow) isValidAmountLocked() bool {
	method, ok := f.currentMethodLocked()
	if !ok {
		return false
	}
	amount := f.amountLocked()
	return amount > 0 && amount >= method.MinAmount && amount <= method.MaxAmount
}

// Back returns from amount or payment to the methods step. History also
// returns to methods.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.step {
	case StepAmount, StepPayment, StepHistory, StepSuccess:
		f.step = StepMethods
	}
}

// ShowHistory opens the parallel history view.
func (f *Flow) ShowHistory() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.step {
	case StepMethods, StepPayment, StepSuccess:
		f.step = StepHistory
		return nil
	}
	return ErrWrongStep
}

// Submit creates the balance request and moves amount → payment. On any
// failure the flow stays on the amount step with a visible notification.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.step != StepAmount {
		f.mu.Unlock()
		return ErrWrongStep
	}
	if f.loading {
		f.mu.Unlock()
		return ErrBusy
	}
	if !f.isValidAmountLocked() {
		f.mu.Unlock()
		return ErrInvalidAmount
	}
	amount := f.amountLocked()
	method := f.selectedMethod
	f.loading = true
	f.mu.Unlock()

	request, err := f.backend.CreateBalanceRequest(ctx, f.tgID, amount, method)

	f.mu.Lock()
	f.loading = false
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.mu.Unlock()
		f.notifier.Push(fmt.Sprintf("Ошибка: %s", err.Error()), notify.TypeError)
		return err
	}

	f.payment = &request
	f.receiptFile = nil
	f.receiptPreview = ""
	f.uploadProgress = 0
	f.step = StepPayment
	f.mu.Unlock()

	f.notifier.Push(fmt.Sprintf("Заявка №%s создана", request.OrderID), notify.TypeSuccess)
	f.notifyOperator(telegram.PayloadNewOrder, request)
	f.refreshRequests(ctx)
	return nil
}

// AttachReceipt validates and stores the selected file, producing an
// in-memory preview for images. A failed validation clears any previous
// selection.
func (f *Flow) AttachReceipt(file receipt.File) error {
	f.mu.Lock()
	if f.step != StepPayment || f.payment == nil {
		f.mu.Unlock()
		return ErrNoRequest
	}
	f.mu.Unlock()

	if err := receipt.Validate(file); err != nil {
		f.mu.Lock()
		f.receiptFile = nil
		f.receiptPreview = ""
		f.mu.Unlock()
		f.notifier.Push(err.Error(), notify.TypeError)
		return err
	}

	preview, err := receipt.Preview(file)
	if err != nil {
		logger.Log.Warn("receipt preview", zap.Error(err))
		preview = ""
	}

	f.mu.Lock()
	f.receiptFile = &file
	f.receiptPreview = preview
	f.mu.Unlock()

	f.notifier.Push(fmt.Sprintf("Файл выбран: %s (%s)", file.Name, receipt.FormatSize(file.Size)), notify.TypeSuccess)
	return nil
}

func (f *Flow) RemoveReceipt() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptFile = nil
	f.receiptPreview = ""
}

// Upload sends the attached receipt. Progress is simulated 0→90 while the
// request is in transit and snaps to 100 on completion; a failed upload
// resets progress and leaves the request status untouched.
func (f *Flow) Upload(ctx context.Context) error {
	f.mu.Lock()
	if f.payment == nil {
		f.mu.Unlock()
		return ErrNoRequest
	}
	if f.receiptFile == nil {
		f.mu.Unlock()
		return ErrNoReceipt
	}
	if f.loading {
		f.mu.Unlock()
		return ErrBusy
	}
	orderID := f.payment.OrderID
	file := *f.receiptFile
	f.loading = true
	f.uploadProgress = 0
	f.mu.Unlock()

	content, err := receipt.Content(file)
	if err != nil {
		f.mu.Lock()
		f.loading = false
		f.mu.Unlock()
		f.notifier.Push(fmt.Sprintf("Ошибка загрузки: %s", err.Error()), notify.TypeError)
		return err
	}

	stopProgress := f.startProgress()
	updated, err := f.backend.UploadReceipt(ctx, orderID, file.Name, file.MimeType, content)
	stopProgress()

	f.mu.Lock()
	f.loading = false
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.uploadProgress = 0
		f.mu.Unlock()
		f.notifier.Push(fmt.Sprintf("Ошибка загрузки: %s", err.Error()), notify.TypeError)
		return err
	}

	f.uploadProgress = 100
	if f.payment != nil && f.payment.OrderID == orderID {
		f.payment.Status = models.RECEIPT_UPLOADED
		if updated.Status != "" {
			f.payment.Status = updated.Status
		}
	}
	f.timers = append(f.timers, time.AfterFunc(time.Second, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.closed {
			f.uploadProgress = 0
		}
	}))
	f.mu.Unlock()

	f.notifier.Push("Чек успешно загружен", notify.TypeSuccess)
	return nil
}

// startProgress ticks the simulated progress up to 90 until stopped.
func (f *Flow) startProgress() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(f.progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				f.mu.Lock()
				if f.uploadProgress < 90 {
					f.uploadProgress += 10
				}
				f.mu.Unlock()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ConfirmationPrompt is the disclosure the UI must show before Confirm:
// the exact amount and the irreversibility of marking the request paid.
func (f *Flow) ConfirmationPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payment == nil {
		return ""
	}
	return fmt.Sprintf(
		"Вы уверены что:\n• Перевели точную сумму ₽%.2f\n• Приложили правильный чек об оплате\n• Готовы отправить заявку администратору?\n\nПосле отправки изменить ничего будет нельзя.",
		f.payment.Amount,
	)
}

// Confirm marks the request paid. The receipt must already be uploaded,
// and the caller passes the user's explicit acknowledgement of the
// ConfirmationPrompt; declining leaves everything unchanged.
func (f *Flow) Confirm(ctx context.Context, acknowledged bool) error {
	f.mu.Lock()
	if f.payment == nil {
		f.mu.Unlock()
		return ErrNoRequest
	}
	if f.payment.Status != models.RECEIPT_UPLOADED {
		f.mu.Unlock()
		f.notifier.Push("Сначала загрузите чек об оплате", notify.TypeError)
		return ErrReceiptRequired
	}
	if !acknowledged {
		f.mu.Unlock()
		return nil
	}
	if f.loading {
		f.mu.Unlock()
		return ErrBusy
	}
	orderID := f.payment.OrderID
	f.loading = true
	f.mu.Unlock()

	_, err := f.backend.MarkPaid(ctx, orderID)

	f.mu.Lock()
	f.loading = false
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.mu.Unlock()
		f.notifier.Push(fmt.Sprintf("Ошибка: %s", err.Error()), notify.TypeError)
		return err
	}

	var confirmed models.BalanceRequest
	if f.payment != nil && f.payment.OrderID == orderID {
		f.payment.Status = models.WAITING_ADMIN
		confirmed = *f.payment
	}
	f.step = StepSuccess
	f.mu.Unlock()

	f.notifyOperator(telegram.PayloadPaymentConfirmation, confirmed)
	f.refreshRequests(ctx)
	return nil
}

// OpenRequest loads an existing active request into the payment step.
// Resolved requests are read-only and cannot be reopened.
func (f *Flow) OpenRequest(orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.OrderID != orderID {
			continue
		}
		if !models.IsActiveStatus(r.Status) {
			return ErrRequestResolved
		}
		request := r
		f.payment = &request
		f.receiptFile = nil
		f.receiptPreview = ""
		f.uploadProgress = 0
		f.step = StepPayment
		return nil
	}
	return ErrNoRequest
}

// notifyOperator sends the out-of-band admin payload. Best-effort: its
// failure never affects the transition that triggered it.
func (f *Flow) notifyOperator(payloadType string, request models.BalanceRequest) {
	if f.sender == nil {
		return
	}

	f.mu.Lock()
	method, _ := f.currentMethodLocked()
	f.mu.Unlock()
	telegram.SendToBot(f.sender, telegram.Payload{
		Type: payloadType,
		Data: map[string]any{
			"orderId":   request.OrderID,
			"userId":    f.tgID,
			"userName":  f.userName,
			"username":  f.username,
			"amount":    request.Amount,
			"method":    method.Name,
			"createdAt": request.CreatedAt,
			"paidAt":    time.Now().UTC(),
		},
	})
}

// Close cancels pending timers. Results of in-flight calls arriving later
// are discarded.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = nil
}
