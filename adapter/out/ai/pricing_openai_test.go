package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"

	"pricing_server/pkg/apperr"
)

// TestOracleBreakerTripsOnConsecutiveFailures: six consecutive failures open
// the breaker, and further calls are rejected without running the function.
func TestOracleBreakerTripsOnConsecutiveFailures(t *testing.T) {
	cb := newOracleBreaker()
	boom := errors.New("upstream down")

	for i := 0; i < 6; i++ {
		if _, err := cb.Execute(func() (interface{}, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: got %v, want %v", i, err, boom)
		}
	}

	if got := cb.State(); got != gobreaker.StateOpen {
		t.Fatalf("state after 6 consecutive failures = %v, want open", got)
	}

	invoked := false
	_, err := cb.Execute(func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("open breaker returned %v, want ErrOpenState", err)
	}
	if invoked {
		t.Fatal("open breaker still invoked the call")
	}
}

// TestExtractForDomainOpenBreaker: with the breaker open, the extractor
// reports the oracle as unavailable without attempting the API call.
func TestExtractForDomainOpenBreaker(t *testing.T) {
	cb := newOracleBreaker()
	boom := errors.New("upstream down")
	for i := 0; i < 6; i++ {
		cb.Execute(func() (interface{}, error) { return nil, boom })
	}

	e := &Extractor{breaker: cb}

	_, err := e.ExtractForDomain(context.Background(), "price is $200", "example.com")
	if err == nil {
		t.Fatal("expected error from open breaker")
	}

	appErr := apperr.AsAppError(err)
	if appErr == nil || appErr.Code != apperr.CodeCollaboratorUnavailable {
		t.Fatalf("got %v, want %s", err, apperr.CodeCollaboratorUnavailable)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("cause = %v, want ErrOpenState", err)
	}
}
