package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

func TestRunnerRunsStagesInDependencyOrder(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	var mu sync.Mutex
	order := make([]string, 0, 4)
	record := func(name string) StageFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	g, err := NewGraph(
		Stage{Name: "create", Run: record("create")},
		Stage{Name: "load-merchants", DependsOn: []string{"create"}, Run: record("load-merchants")},
		Stage{Name: "load-sales", DependsOn: []string{"create"}, Run: record("load-sales")},
		Stage{Name: "reconcile", DependsOn: []string{"load-merchants", "load-sales"}, Run: record("reconcile")},
	)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	r := NewRunner(log, g)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if len(order) != 4 || order[0] != "create" || order[3] != "reconcile" {
		t.Errorf("unexpected stage execution order: %v", order)
	}
	info := r.Info()
	if info.Status != StatusComplete {
		t.Errorf("expected run status %v; got %v", StatusComplete, info.Status)
	}
	for name, s := range info.Stages {
		if s.Status != StatusComplete {
			t.Errorf("expected stage %v to complete; got %v", name, s.Status)
		}
	}
	if !r.IsFinished() {
		t.Error("expected the run to report finished")
	}
}

func TestRunnerStageFailureCancelsDependants(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	var downstreamRan int32
	g, err := NewGraph(
		Stage{Name: "load", Run: func(ctx context.Context) error {
			return errors.New("bucket listing failed")
		}},
		Stage{Name: "reconcile", DependsOn: []string{"load"}, Run: func(ctx context.Context) error {
			atomic.AddInt32(&downstreamRan, 1)
			return nil
		}},
	)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	r := NewRunner(log, g)
	err = r.Run(context.Background())
	if err == nil {
		t.Fatal("expected the stage failure to fail the run")
	}
	if atomic.LoadInt32(&downstreamRan) != 0 {
		t.Error("expected the dependant stage to be skipped after the failure")
	}
	info := r.Info()
	if info.Status != StatusCompleteWithError {
		t.Errorf("expected run status %v; got %v", StatusCompleteWithError, info.Status)
	}
	if info.Stages["load"].Status != StatusCompleteWithError {
		t.Errorf("expected the failing stage to report an error; got %v", info.Stages["load"])
	}
	if info.Stages["reconcile"].Status != StatusShutdown {
		t.Errorf("expected the dependant stage to report shutdown; got %v", info.Stages["reconcile"])
	}
}

func TestRunnerRecoversStagePanic(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	g, err := NewGraph(
		Stage{Name: "load", Run: func(ctx context.Context) error {
			panic("deliberate stage panic")
		}},
	)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	r := NewRunner(log, g)
	err = r.Run(context.Background())
	if err == nil {
		t.Fatal("expected the stage panic to fail the run")
	}
	info := r.Info()
	if info.Status != StatusCompleteWithError {
		t.Errorf("expected run status %v; got %v", StatusCompleteWithError, info.Status)
	}
}

func TestRunnerStopCancelsRun(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	started := make(chan struct{})
	g, err := NewGraph(
		Stage{Name: "load", Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	r := NewRunner(log, g)
	ctx, cancel := context.WithCancel(context.Background())
	r.SetCancelFunc(cancel)
	errChan := make(chan error, 1)
	go func() { errChan <- r.Run(ctx) }()
	<-started
	r.Stop()
	if err := <-errChan; err == nil {
		t.Fatal("expected a cancellation error")
	}
}
