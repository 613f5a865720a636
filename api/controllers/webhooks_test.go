package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tundeajayi/storefront-backend/internal/webhooks"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	"github.com/tundeajayi/storefront-backend/pkg/types"
)

type stubWebhookEnqueuer struct {
	events []webhooks.PaymentEvent
	err    error
}

func (s *stubWebhookEnqueuer) EnqueuePaymentWebhook(ctx context.Context, event webhooks.PaymentEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func TestPaymentWebhookAcceptsAndEnqueues(t *testing.T) {
	logg := testLogger()
	stub := &stubWebhookEnqueuer{}

	body := `{"event_id":"evt-1","reference":"ORD-AAAA11112222","status":"success","amount":"42.50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()
	PaymentWebhook(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(stub.events) != 1 {
		t.Fatalf("expected one enqueued event, got %d", len(stub.events))
	}
	event := stub.events[0]
	if event.EventID != "evt-1" || event.Reference != "ORD-AAAA11112222" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Status != enums.WebhookStatusSuccess {
		t.Fatalf("unexpected status %s", event.Status)
	}
	if !event.Amount.Equal(decimal.RequireFromString("42.50")) {
		t.Fatalf("unexpected amount %s", event.Amount)
	}
}

func TestPaymentWebhookMintsEventIDWhenAbsent(t *testing.T) {
	logg := testLogger()
	stub := &stubWebhookEnqueuer{}

	body := `{"reference":"ORD-AAAA11112222","status":"failed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()
	PaymentWebhook(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(stub.events) != 1 {
		t.Fatalf("expected one enqueued event, got %d", len(stub.events))
	}
	if _, err := uuid.Parse(stub.events[0].EventID); err != nil {
		t.Fatalf("minted event id %q is not a uuid: %v", stub.events[0].EventID, err)
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	payload := envelope.Data.(map[string]any)
	if payload["event_id"] != stub.events[0].EventID {
		t.Fatalf("response event id %v does not match enqueued %s", payload["event_id"], stub.events[0].EventID)
	}
}

func TestPaymentWebhookRejectsBadInput(t *testing.T) {
	logg := testLogger()

	cases := []struct {
		name string
		body string
	}{
		{name: "missing reference", body: `{"status":"success"}`},
		{name: "unknown status", body: `{"reference":"ORD-AAAA11112222","status":"sideways"}`},
		{name: "malformed json", body: `{"reference":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubWebhookEnqueuer{}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			PaymentWebhook(stub, logg).ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if len(stub.events) != 0 {
				t.Fatalf("nothing should be enqueued for invalid input")
			}
		})
	}
}

func TestPaymentWebhookQueueOutage(t *testing.T) {
	logg := testLogger()
	stub := &stubWebhookEnqueuer{err: errors.New("redis down")}

	body := `{"reference":"ORD-AAAA11112222","status":"success"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()
	PaymentWebhook(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue is down, got %d", rec.Code)
	}
}
