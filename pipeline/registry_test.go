package pipeline

import (
	"testing"

	"github.com/Rohesen/walmart-ingest/logger"
	"golang.org/x/net/context"
)

func TestSafeMapRunInfo(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	g, err := NewGraph(Stage{Name: "load", Run: func(ctx context.Context) error { return nil }})
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	runs := NewSafeMapRunInfo()
	r1 := NewRunner(log, g)
	r2 := NewRunner(log, g)
	runs.Store(r1)
	runs.Store(r2)

	got, ok := runs.Load(r1.Guid())
	if !ok || got.Guid() != r1.Guid() {
		t.Errorf("expected to load runner %v; got %v, %v", r1.Guid(), got, ok)
	}
	if _, ok := runs.Load("no-such-run"); ok {
		t.Error("expected a miss for an unknown GUID")
	}
	if infos := runs.GetAll(); len(infos) != 2 {
		t.Errorf("expected 2 run infos; got %v", len(infos))
	}
}

func TestRunLock(t *testing.T) {
	locks := NewRunLock()

	release, err := locks.TryLock("ingest.walmart_sales_fact", "run-1")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}

	// A second run against the same target is refused while the lock is held.
	if _, err := locks.TryLock("ingest.walmart_sales_fact", "run-2"); err == nil {
		t.Error("expected the second lock attempt to fail")
	}

	// A different target is independent.
	release2, err := locks.TryLock("ingest.other_fact", "run-3")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	release2()

	// After release the target can be claimed again.
	release()
	release3, err := locks.TryLock("ingest.walmart_sales_fact", "run-4")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	release3()
}
