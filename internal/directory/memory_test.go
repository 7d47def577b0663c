package directory

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

func TestMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	attrsA := map[string]string{
		AttrMerchantID: "m1",
		AttrClient:     "frontend",
		AttrProject:    "p1",
		AttrRef:        "12303",
	}
	attrsB := map[string]string{
		AttrMerchantID: "m2",
		AttrClient:     "backend",
		AttrProject:    "p2",
		AttrRef:        "999",
	}

	if err := s.Create(ctx, "c1", attrsA); err != nil {
		t.Fatalf("Create(c1) failed: %v", err)
	}
	if err := s.Create(ctx, "c2", attrsB); err != nil {
		t.Fatalf("Create(c2) failed: %v", err)
	}

	// Empty filter returns everything.
	all, err := s.Find(ctx, Filter{})
	if err != nil {
		t.Fatalf("Find({}) failed: %v", err)
	}
	sort.Strings(all)
	if len(all) != 2 || all[0] != "c1" || all[1] != "c2" {
		t.Errorf("Find({}) = %v, want [c1 c2]", all)
	}

	// Filter matching only A.
	got, err := s.Find(ctx, Filter{AttrMerchantID: "m1", AttrProject: "p1", AttrRef: "12303"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 1 || got[0] != "c1" {
		t.Errorf("Find = %v, want [c1]", got)
	}
}

func TestMemoryStore_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	attrs := map[string]string{AttrMerchantID: "m1"}
	if err := s.Create(ctx, "c1", attrs); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	err := s.Create(ctx, "c1", attrs)
	if !errors.Is(err, ErrDuplicateConnection) {
		t.Fatalf("second Create error = %v, want ErrDuplicateConnection", err)
	}

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	if err := s.Delete(ctx, "ghost"); err != nil {
		t.Errorf("Delete of nonexistent id failed: %v", err)
	}

	if err := s.Create(ctx, "c1", map[string]string{AttrMerchantID: "m1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "c1"); err != nil {
		t.Errorf("repeated Delete failed: %v", err)
	}

	got, err := s.Find(ctx, Filter{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Find after delete = %v, want empty", got)
	}
}

func TestMemoryStore_PartialAttributes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	// Connect-time attributes may omit ref; a ref filter must not match
	// such a record (unset record keys are not wildcards).
	if err := s.Create(ctx, "c1", map[string]string{
		AttrMerchantID: "m1",
		AttrClient:     "frontend",
		AttrProject:    "p1",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Find(ctx, Filter{AttrMerchantID: "m1", AttrRef: "42"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Find with ref filter = %v, want empty", got)
	}

	got, err = s.Find(ctx, Filter{AttrMerchantID: "m1", AttrProject: "p1"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 1 || got[0] != "c1" {
		t.Errorf("Find without ref filter = %v, want [c1]", got)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	now := time.Now()
	s.now = func() time.Time { return now }

	if err := s.Create(ctx, "c1", map[string]string{AttrMerchantID: "m1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Still live just before expiry.
	s.now = func() time.Time { return now.Add(59 * time.Second) }
	got, err := s.Find(ctx, Filter{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Find before expiry = %v, want [c1]", got)
	}

	// Invisible after expiry, and purged by the sweeper.
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	got, err = s.Find(ctx, Filter{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Find after expiry = %v, want empty", got)
	}

	purged, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("PurgeExpired = %d, want 1", purged)
	}
	if s.Len() != 0 {
		t.Errorf("Len() after purge = %d, want 0", s.Len())
	}
}

func TestFilter_Matches(t *testing.T) {
	attrs := map[string]string{
		AttrMerchantID: "m1",
		AttrProject:    "p1",
		AttrRef:        "42",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches all", Filter{}, true},
		{"exact subset", Filter{AttrMerchantID: "m1", AttrRef: "42"}, true},
		{"value mismatch", Filter{AttrMerchantID: "m2"}, false},
		{"key absent from record", Filter{AttrClient: "frontend"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(attrs); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
