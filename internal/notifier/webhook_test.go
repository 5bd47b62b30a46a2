package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testWebhook(secret string) *WebhookChannel {
	return NewWebhookChannel(WebhookConfig{
		Secret:      secret,
		Attempts:    3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	})
}

func TestWebhookSignsPayload(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out := testWebhook("s3cr3t").Send(context.Background(), srv.URL, "Alerta", "Preço caiu", testProduct())
	if !out.Success {
		t.Fatalf("Send() = %+v", out)
	}
	if gotSig != Sign("s3cr3t", gotBody) {
		t.Errorf("signature = %q, want %q", gotSig, Sign("s3cr3t", gotBody))
	}

	var payload WebhookPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload.Event != "price_alert" || payload.Product == nil || payload.Product.ID != 7 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := testWebhook("").Send(context.Background(), srv.URL, "s", "m", nil)
	if !out.Success {
		t.Fatalf("Send() = %+v", out)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	out := testWebhook("").Send(context.Background(), srv.URL, "s", "m", nil)
	if out.Success || out.Error != "HTTP 400" {
		t.Errorf("Send() = %+v", out)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestWebhookRejectsBadURL(t *testing.T) {
	for _, target := range []string{"", "ftp://example.com", "not a url"} {
		if out := testWebhook("").Send(context.Background(), target, "s", "m", nil); out.Success {
			t.Errorf("Send(%q) should fail", target)
		}
	}
}
