package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/maddy1092/ottu-ws/internal/directory"
)

// fakeTransport returns a scripted error per connection id.
type fakeTransport struct {
	errs  map[string]error
	posts []string
}

func (f *fakeTransport) Post(ctx context.Context, connectionID string, body []byte) error {
	f.posts = append(f.posts, connectionID)
	return f.errs[connectionID]
}

func TestSend_Delivered(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryStore(0)
	tr := &fakeTransport{errs: map[string]error{}}
	d := New(tr, dir, slog.Default())

	if got := d.Send(ctx, "c1", []byte(`{}`)); got != Delivered {
		t.Errorf("Send = %v, want Delivered", got)
	}

	stats := d.Stats()
	if stats.Delivered != 1 || stats.Evicted != 0 || stats.TransportErrors != 0 {
		t.Errorf("Stats = %+v, want 1 delivered", stats)
	}
}

func TestSend_ConnectionGoneEvicts(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryStore(0)

	attrs := map[string]string{
		directory.AttrMerchantID: "m1",
		directory.AttrProject:    "p1",
		directory.AttrRef:        "42",
	}
	if err := dir.Create(ctx, "c1", attrs); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tr := &fakeTransport{errs: map[string]error{"c1": ErrConnectionNotFound}}
	d := New(tr, dir, slog.Default())

	if got := d.Send(ctx, "c1", []byte(`{}`)); got != ConnectionGone {
		t.Errorf("Send = %v, want ConnectionGone", got)
	}

	// The record must be gone by the time Send returns.
	ids, err := dir.Find(ctx, directory.Filter(attrs))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Find after eviction = %v, want empty", ids)
	}

	stats := d.Stats()
	if stats.Evicted != 1 {
		t.Errorf("Stats.Evicted = %d, want 1", stats.Evicted)
	}
}

func TestSend_TransportErrorKeepsRecord(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryStore(0)

	attrs := map[string]string{directory.AttrMerchantID: "m1"}
	if err := dir.Create(ctx, "c1", attrs); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tr := &fakeTransport{errs: map[string]error{"c1": errors.New("write timeout")}}
	d := New(tr, dir, slog.Default())

	if got := d.Send(ctx, "c1", []byte(`{}`)); got != TransportError {
		t.Errorf("Send = %v, want TransportError", got)
	}

	// No eviction and no retry on transient failure.
	ids, err := dir.Find(ctx, directory.Filter{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("Find = %v, want [c1]", ids)
	}
	if len(tr.posts) != 1 {
		t.Errorf("Post attempts = %d, want 1", len(tr.posts))
	}
}

func TestSend_GoneConnectionAlreadyDeleted(t *testing.T) {
	// Eviction racing an explicit disconnect converges on the same
	// idempotent delete.
	ctx := context.Background()
	dir := directory.NewMemoryStore(0)
	tr := &fakeTransport{errs: map[string]error{"ghost": ErrConnectionNotFound}}
	d := New(tr, dir, slog.Default())

	if got := d.Send(ctx, "ghost", []byte(`{}`)); got != ConnectionGone {
		t.Errorf("Send = %v, want ConnectionGone", got)
	}
}
