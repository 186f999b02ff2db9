package api

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/stubserver"
)

// startStub serves the stub backend on a loopback port and returns a client
// pointed at it.
func startStub(t *testing.T) *Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	app := stubserver.New().App()
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	return testClient("http://" + ln.Addr().String())
}

func TestFullTopUpAgainstStub(t *testing.T) {
	t.Parallel()
	client := startStub(t)
	ctx := context.Background()

	captcha, err := client.GetCaptcha(ctx)
	if err != nil {
		t.Fatalf("GetCaptcha: %v", err)
	}
	answer, err := base64.StdEncoding.DecodeString(captcha.Image)
	if err != nil {
		t.Fatalf("decoding captcha: %v", err)
	}
	verdict, err := client.VerifyCaptcha(ctx, captcha.Token, string(answer))
	if err != nil || !verdict.OK {
		t.Fatalf("VerifyCaptcha: %v %+v", err, verdict)
	}

	cities, err := client.GetCities(ctx)
	if err != nil || len(cities) == 0 {
		t.Fatalf("GetCities: %v %v", err, cities)
	}

	user, err := client.CreateOrUpdateUser(ctx, NewUserPayload(42, "ivan", "Иван", "", cities[0], "", "ru", false))
	if err != nil {
		t.Fatalf("CreateOrUpdateUser: %v", err)
	}
	if user.TgID != 42 {
		t.Errorf("user: got %+v", user)
	}

	methods, err := client.GetPaymentMethods(ctx)
	if err != nil || len(methods) == 0 {
		t.Fatalf("GetPaymentMethods: %v %v", err, methods)
	}

	request, err := client.CreateBalanceRequest(ctx, 42, 2500, "card")
	if err != nil {
		t.Fatalf("CreateBalanceRequest: %v", err)
	}
	if request.Status != models.PENDING {
		t.Errorf("status: got %q, want pending", request.Status)
	}

	uploaded, err := client.UploadReceipt(ctx, request.OrderID, "check.png", "image/png", []byte("fake png"))
	if err != nil {
		t.Fatalf("UploadReceipt: %v", err)
	}
	if uploaded.Status != models.RECEIPT_UPLOADED {
		t.Errorf("status: got %q, want receipt_uploaded", uploaded.Status)
	}

	paid, err := client.MarkPaid(ctx, request.OrderID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != models.WAITING_ADMIN {
		t.Errorf("status: got %q, want waiting_admin", paid.Status)
	}

	requests, err := client.GetBalanceRequests(ctx, 42)
	if err != nil {
		t.Fatalf("GetBalanceRequests: %v", err)
	}
	if len(requests) != 1 || requests[0].OrderID != request.OrderID {
		t.Errorf("requests: got %+v", requests)
	}

	// A premature MarkPaid on a fresh request surfaces the backend detail.
	fresh, err := client.CreateBalanceRequest(ctx, 42, 500, "card")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.MarkPaid(ctx, fresh.OrderID); err == nil {
		t.Error("MarkPaid before upload: expected error")
	}
}
