package api

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(base string) *Client {
	c := New(base)
	c.backoffBase = time.Millisecond
	return c
}

func asAPIError(t *testing.T, err error) *APIError {
	t.Helper()
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type: got %T, want *APIError", err)
	}
	return apiErr
}

func TestGetRetriesOn5xx(t *testing.T) {
	t.Parallel()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"cities":["Москва"]}`))
	}))
	defer server.Close()

	cities, err := testClient(server.URL).GetCities(context.Background())
	if err != nil {
		t.Fatalf("GetCities after retries: %v", err)
	}
	if len(cities) != 1 || cities[0] != "Москва" {
		t.Errorf("cities: got %v, want [Москва]", cities)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls: got %d, want 3", got)
	}
}

func TestGetDoesNotRetryOn4xx(t *testing.T) {
	t.Parallel()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"no such user"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetCities(context.Background())
	apiErr := asAPIError(t, err)
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", apiErr.Status)
	}
	if apiErr.Message != "no such user" {
		t.Errorf("message: got %q, want %q", apiErr.Message, "no such user")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls: got %d, want 1", got)
	}
}

func TestMutatingCallsAreNeverRetried(t *testing.T) {
	t.Parallel()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateBalanceRequest(context.Background(), 1, 500, "card")
	apiErr := asAPIError(t, err)
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", apiErr.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls: got %d, want 1", got)
	}
}

func TestTimeoutYieldsStatusZero(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := testClient(server.URL)
	err := c.do(context.Background(), "/api/cities", requestOptions{timeout: 50 * time.Millisecond}, nil)
	apiErr := asAPIError(t, err)
	if apiErr.Status != 0 {
		t.Errorf("status: got %d, want 0", apiErr.Status)
	}
	if apiErr.Data["type"] != "timeout" {
		t.Errorf("data type: got %v, want timeout", apiErr.Data["type"])
	}
}

func TestUnreachableBackendYieldsNetworkError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := testClient(server.URL).GetCities(context.Background())
	apiErr := asAPIError(t, err)
	if apiErr.Status != 0 {
		t.Errorf("status: got %d, want 0", apiErr.Status)
	}
	if apiErr.Data["type"] != "network" {
		t.Errorf("data type: got %v, want network", apiErr.Data["type"])
	}
}

func TestClientSideValidationSkipsNetwork(t *testing.T) {
	t.Parallel()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	c := testClient(server.URL)
	if _, err := c.CreateBalanceRequest(context.Background(), 0, 500, "card"); err == nil {
		t.Error("CreateBalanceRequest with tg_id 0: expected error")
	}
	if _, err := c.CreateBalanceRequest(context.Background(), 1, -1, "card"); err == nil {
		t.Error("CreateBalanceRequest with negative amount: expected error")
	}
	if _, err := c.GetBalanceRequests(context.Background(), 0); err == nil {
		t.Error("GetBalanceRequests with tg_id 0: expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("calls: got %d, want 0", got)
	}
}

func TestUploadReceiptSendsMultipart(t *testing.T) {
	t.Parallel()
	content := []byte("%PDF-1.4 receipt")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("content type: got %q (%v)", mediaType, err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("reading part: %v", err)
		}
		if part.FormName() != "file" {
			t.Errorf("field: got %q, want file", part.FormName())
		}
		if part.FileName() != "check.pdf" {
			t.Errorf("filename: got %q, want check.pdf", part.FileName())
		}
		if got := part.Header.Get("Content-Type"); got != "application/pdf" {
			t.Errorf("part content type: got %q, want application/pdf", got)
		}
		w.Write([]byte(`{"order_id":"VB1","status":"receipt_uploaded"}`))
	}))
	defer server.Close()

	request, err := testClient(server.URL).UploadReceipt(context.Background(), "VB1", "check.pdf", "application/pdf", content)
	if err != nil {
		t.Fatalf("UploadReceipt: %v", err)
	}
	if request.Status != "receipt_uploaded" {
		t.Errorf("status: got %q, want receipt_uploaded", request.Status)
	}
}

func TestSearchProductsCapsLimit(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("limit"); got != "100" {
			t.Errorf("limit: got %q, want 100", got)
		}
		if got := q.Get("query"); got != "часы" {
			t.Errorf("query: got %q, want часы", got)
		}
		if got := q.Get("city"); got != "Казань" {
			t.Errorf("city: got %q, want Казань", got)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).SearchProducts(context.Background(), "часы", SearchParams{City: "Казань", Limit: 500})
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
}
