package admin

import (
	"context"
	"testing"
)

func TestMemoryBlocklist(t *testing.T) {
	b := NewMemoryBlocklist()
	ctx := context.Background()

	blocked, err := b.IsBlocked(ctx, "hash-a", "10.0.0.1")
	if err != nil || blocked {
		t.Fatalf("fresh blocklist blocked caller: %v %v", blocked, err)
	}

	if err := b.BlockPhone(ctx, "hash-a"); err != nil {
		t.Fatalf("BlockPhone: %v", err)
	}
	blocked, _ = b.IsBlocked(ctx, "hash-a", "")
	if !blocked {
		t.Fatal("blocked phone not rejected")
	}

	if err := b.BlockIP(ctx, "10.0.0.9"); err != nil {
		t.Fatalf("BlockIP: %v", err)
	}
	blocked, _ = b.IsBlocked(ctx, "hash-b", "10.0.0.9")
	if !blocked {
		t.Fatal("blocked ip not rejected")
	}

	if err := b.UnblockPhone(ctx, "hash-a"); err != nil {
		t.Fatalf("UnblockPhone: %v", err)
	}
	blocked, _ = b.IsBlocked(ctx, "hash-a", "")
	if blocked {
		t.Fatal("unblocked phone still rejected")
	}
}

func TestMemoryBlocklist_AdminExempt(t *testing.T) {
	b := NewMemoryBlocklist()
	ctx := context.Background()

	if err := b.BlockPhone(ctx, "hash-admin"); err != nil {
		t.Fatalf("BlockPhone: %v", err)
	}
	if err := b.AddAdmin(ctx, "hash-admin"); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	blocked, err := b.IsBlocked(ctx, "hash-admin", "")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if blocked {
		t.Fatal("admin fingerprint was blocked")
	}
}
