package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

func TestDecodeEvaluationRequested(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: `{"evaluation_id":"eval-1","requested_at":"2025-01-02T03:04:05Z"}`, want: "eval-1"},
		{raw: "eval-2", want: "eval-2"},
		{raw: `{"requested_at":"2025-01-02T03:04:05Z"}`, wantErr: true},
		{raw: `{broken`, wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		msg := nats.NewMsg("rxcheck.evaluations.requested")
		msg.Data = []byte(tc.raw)
		got, err := decodeEvaluationRequested(msg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %q", tc.raw, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %q, %v", tc.raw, got, err)
		}
	}
}

func TestDecodeEvaluationRequestedFromHeader(t *testing.T) {
	msg := nats.NewMsg("rxcheck.evaluations.requested")
	msg.Header.Set(evaluationIDHeader, "eval-9")
	got, err := decodeEvaluationRequested(msg)
	if err != nil || got != "eval-9" {
		t.Fatalf("expected header id, got %q, %v", got, err)
	}
}

func TestNewMessageTagsEvaluationID(t *testing.T) {
	msg := newMessage("rxcheck.reviews.required", "eval-3", []byte(`{}`))
	if msg.Subject != "rxcheck.reviews.required" || string(msg.Data) != `{}` {
		t.Fatalf("unexpected message %+v", msg)
	}
	if got := msg.Header.Get(evaluationIDHeader); got != "eval-3" {
		t.Fatalf("expected evaluation id header, got %q", got)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	retry := false
	got := Options{MaxReconnects: 5, RetryOnFailedConnect: &retry}.withDefaults()
	if got.MaxReconnects != 5 || *got.RetryOnFailedConnect {
		t.Fatalf("explicit options must survive defaults, got %+v", got)
	}
	if got.ConnectTimeout <= 0 || got.ReconnectWait <= 0 {
		t.Fatalf("expected default timeouts, got %+v", got)
	}
	if def := (Options{}).withDefaults(); def.RetryOnFailedConnect == nil || !*def.RetryOnFailedConnect {
		t.Fatalf("expected retry on failed connect by default")
	}
}

func TestClassifyPublishError(t *testing.T) {
	if got := classifyPublishError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !got.Retryable {
		t.Fatalf("closed connection should be retryable")
	}
	if got := classifyPublishError(context.Canceled); got.Retryable || got.RecordFailure {
		t.Fatalf("cancellation should be neither retryable nor recorded, got %+v", got)
	}
	if got := classifyPublishError(nats.ErrBadSubject); got.Retryable || got.RecordFailure {
		t.Fatalf("bad subject should be permanent, got %+v", got)
	}
	if got := classifyPublishError(fmt.Errorf("publish: %w", nats.ErrMaxPayload)); got.Retryable {
		t.Fatalf("oversized payload should be permanent")
	}
}

func TestWrapTemporaryForNATSErrors(t *testing.T) {
	err := resilience.WrapTemporary("nats publish", nats.ErrNoServers, classifyPublishError)
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrNoServers) {
		t.Fatalf("expected temporary wrap of ErrNoServers, got %v", err)
	}
}
