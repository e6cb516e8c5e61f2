package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStartCheckout(t *testing.T) {
	var gotAuth, gotIdem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotence-Key")

		var body checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Tier != "pro" {
			t.Errorf("tier = %q, want pro", body.Tier)
		}
		if body.Metadata["tenant_id"] != "ten-1" {
			t.Errorf("metadata tenant_id = %v", body.Metadata["tenant_id"])
		}

		json.NewEncoder(w).Encode(checkoutResponse{CheckoutURL: "https://pay.example.com/s/abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "https://app.example.com/billing/done")
	url, err := c.StartCheckout(context.Background(), "cus-1", "pro", "ten-1")
	if err != nil {
		t.Fatalf("StartCheckout failed: %v", err)
	}
	if url != "https://pay.example.com/s/abc" {
		t.Fatalf("checkout url = %q", url)
	}
	if gotAuth == "" {
		t.Error("missing Authorization header")
	}
	if gotIdem == "" {
		t.Error("missing Idempotence-Key header")
	}
}

func TestSyncPlanPollsUntilActive(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Plan{
			CustomerID:   "cus-1",
			Tier:         "pro",
			PublishLimit: 10,
			Active:       calls >= 3,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")
	c.RetryDelay = time.Millisecond

	plan, err := c.SyncPlan(context.Background(), "cus-1")
	if err != nil {
		t.Fatalf("SyncPlan failed: %v", err)
	}
	if !plan.Active {
		t.Fatal("expected active plan")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestSyncPlanGivesUpAfterFiveAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Plan{CustomerID: "cus-1", Tier: "free", PublishLimit: 1})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")
	c.RetryDelay = time.Millisecond

	plan, err := c.SyncPlan(context.Background(), "cus-1")
	if err != nil {
		t.Fatalf("SyncPlan failed: %v", err)
	}
	if plan.Active {
		t.Fatal("plan should still be inactive")
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}
}

func TestGetPlanProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")
	if _, err := c.GetPlan(context.Background(), "cus-1"); err == nil {
		t.Fatal("expected error on 502")
	}
}
