package services_test

import (
	"context"
	"testing"

	"warden/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSubmissionID(ctx, "sub-1")
	ctx = services.WithMember(ctx, "guild-9", "user-7")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SubmissionIDFromContext(ctx); !ok || id != "sub-1" {
		t.Fatalf("unexpected submission id: %v %v", id, ok)
	}
	if community, ok := services.CommunityIDFromContext(ctx); !ok || community != "guild-9" {
		t.Fatalf("unexpected community: %v %v", community, ok)
	}
	if user, ok := services.UserIDFromContext(ctx); !ok || user != "user-7" {
		t.Fatalf("unexpected user: %v %v", user, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSubmissionID(ctx, "")
	ctx = services.WithMember(ctx, "", "")
	if _, ok := services.SubmissionIDFromContext(ctx); ok {
		t.Fatal("expected no submission id for blank value")
	}
	if _, ok := services.CommunityIDFromContext(ctx); ok {
		t.Fatal("expected no community for blank value")
	}
	if _, ok := services.UserIDFromContext(ctx); ok {
		t.Fatal("expected no user for blank value")
	}
}
