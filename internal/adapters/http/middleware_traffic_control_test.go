package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hoteldesk/concierge/internal/core/domain"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouter(&conciergeFake{answer: &domain.Answer{Text: "ok"}}, RouterDeps{
		RatePerSecond: 1,
		RateBurst:     1,
	})

	res1 := postChat(t, handler, `{"message":"hi","propertyId":"harborview"}`)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	res2 := postChat(t, handler, `{"message":"hi","propertyId":"harborview"}`)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}
}

func TestRateLimitDisabledWhenUnset(t *testing.T) {
	handler := newTestRouter(&conciergeFake{answer: &domain.Answer{Text: "ok"}}, RouterDeps{})

	for i := 0; i < 5; i++ {
		res := postChat(t, handler, `{"message":"hi","propertyId":"harborview"}`)
		if res.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i, res.Code)
		}
	}
}

func TestRateLimitDoesNotGateHealthz(t *testing.T) {
	handler := newTestRouter(&conciergeFake{answer: &domain.Answer{Text: "ok"}}, RouterDeps{
		RatePerSecond: 1,
		RateBurst:     1,
	})

	if res := postChat(t, handler, `{"message":"hi","propertyId":"harborview"}`); res.Code != http.StatusOK {
		t.Fatalf("chat warmup expected 200, got %d", res.Code)
	}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("healthz %d expected 200, got %d", i, res.Code)
		}
	}
}
