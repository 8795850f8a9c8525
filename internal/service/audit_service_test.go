package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/observability"
)

func TestAuditServiceMapsStatusChange(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, zap.NewNop(), observability.NewMetrics())

	actorID := "user-1"
	err := svc.HandleEvent(context.Background(), events.Event{
		Type:       events.EventClaimStatusChanged,
		EntityType: "claim",
		EntityID:   "EXP-0001",
		Actor:      events.Actor{ID: &actorID, Name: "Ada", Role: domain.RoleAccountant},
		Origin:     domain.RequestOrigin{IP: "10.0.0.1", UserAgent: "curl/8"},
		Payload: events.ClaimStatusChangedPayload{
			Action:    domain.AuditActionReject,
			OldStatus: domain.ClaimStatusNew,
			NewStatus: domain.ClaimStatusRejected,
			Amount:    120.5,
			Currency:  "USD",
			Reason:    "duplicate",
		},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := repo.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Action != domain.AuditActionReject {
		t.Fatalf("expected reject action, got %s", entry.Action)
	}
	if entry.ActorName != "Ada" || entry.ActorRole != "accountant" {
		t.Fatalf("actor not denormalized: %+v", entry)
	}
	if entry.IP != "10.0.0.1" || entry.UserAgent != "curl/8" {
		t.Fatalf("origin not recorded: %+v", entry)
	}
	if entry.Detail != "new -> rejected (120.50 USD): duplicate" {
		t.Fatalf("unexpected detail %q", entry.Detail)
	}
}

func TestAuditDetailCarriesAmountAndCurrency(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, zap.NewNop(), observability.NewMetrics())

	err := svc.HandleEvent(context.Background(), events.Event{
		Type:       events.EventClaimStatusChanged,
		EntityType: "claim",
		EntityID:   "EXP-0042",
		Payload: events.ClaimStatusChangedPayload{
			Action:    domain.AuditActionApprove,
			OldStatus: domain.ClaimStatusNew,
			NewStatus: domain.ClaimStatusApproved,
			Amount:    1234.56,
			Currency:  "USD",
		},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := repo.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Detail != "new -> approved (1234.56 USD)" {
		t.Fatalf("amount/currency missing from detail: %q", entries[0].Detail)
	}
	if entries[0].EntityID != "EXP-0042" {
		t.Fatalf("claim id missing from entry: %+v", entries[0])
	}
}

func TestAuditServiceMapsLifecycleActions(t *testing.T) {
	cases := []struct {
		eventType events.EventType
		want      domain.AuditAction
	}{
		{events.EventUserLoggedIn, domain.AuditActionLogin},
		{events.EventUserLoggedOut, domain.AuditActionLogout},
		{events.EventClaimCreated, domain.AuditActionCreate},
		{events.EventClaimUpdated, domain.AuditActionUpdate},
		{events.EventClaimDeleted, domain.AuditActionDelete},
		{events.EventUserStatusChanged, domain.AuditActionStatusChange},
	}

	for _, tc := range cases {
		repo := &fakeAuditRepo{}
		svc := NewAuditService(repo, zap.NewNop(), observability.NewMetrics())
		if err := svc.HandleEvent(context.Background(), events.Event{Type: tc.eventType}); err != nil {
			t.Fatalf("%s: %v", tc.eventType, err)
		}
		entries := repo.all()
		if len(entries) != 1 || entries[0].Action != tc.want {
			t.Fatalf("%s: expected %s, got %+v", tc.eventType, tc.want, entries)
		}
	}
}

func TestAuditFailureIsSwallowedAndCounted(t *testing.T) {
	repo := &fakeAuditRepo{fail: true}
	metrics := observability.NewMetrics()
	svc := NewAuditService(repo, zap.NewNop(), metrics)

	err := svc.HandleEvent(context.Background(), events.Event{
		Type:     events.EventClaimCreated,
		EntityID: "EXP-0001",
	})
	if err != nil {
		t.Fatalf("audit failures must not propagate, got %v", err)
	}
	if metrics.AuditFailures() != 1 {
		t.Fatalf("expected 1 counted failure, got %d", metrics.AuditFailures())
	}
}
