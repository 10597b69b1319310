package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/stats"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type Status string

const (
	StatusStarting          Status = "starting"
	StatusRunning           Status = "running"
	StatusComplete          Status = "complete"
	StatusCompleteWithError Status = "error"
	StatusShutdown          Status = "shutdown"
)

// StageStatus records the outcome of one stage.
type StageStatus struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"startTime,omitempty"`
	EndTime   time.Time `json:"endTime,omitempty"`
}

// RunInfo is the queryable state of a running or completed pipeline.
type RunInfo struct {
	Guid      string                 `json:"guid"`
	Status    Status                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	StartTime time.Time              `json:"startTime"`
	EndTime   time.Time              `json:"endTime,omitempty"`
	Stages    map[string]StageStatus `json:"stages"`
	Stats     []stats.Stats          `json:"stats,omitempty"`
}

// Runner executes a Graph while tracking per-stage status.
type Runner struct {
	log    logger.Logger
	graph  *Graph
	guid   string
	mu     sync.Mutex
	info   RunInfo
	cancel context.CancelFunc
}

// NewRunner allocates a Runner for one execution of the given graph.
// Each run gets its own GUID.
func NewRunner(log logger.Logger, graph *Graph) *Runner {
	guid := xid.New().String()
	info := RunInfo{
		Guid:   guid,
		Status: StatusStarting,
		Stages: make(map[string]StageStatus, len(graph.stages)),
	}
	for _, s := range graph.stages {
		info.Stages[s.Name] = StageStatus{Name: s.Name, Status: StatusStarting}
	}
	return &Runner{log: log, graph: graph, guid: guid, info: info}
}

func (r *Runner) Guid() string {
	return r.guid
}

// Info returns a copy of the run state.
func (r *Runner) Info() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.info
	info.Stages = make(map[string]StageStatus, len(r.info.Stages))
	for k, v := range r.info.Stages {
		info.Stages[k] = v
	}
	return info
}

func (r *Runner) setStageStatus(name string, status Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.info.Stages[name]
	s.Status = status
	switch status {
	case StatusRunning:
		s.StartTime = time.Now()
	case StatusComplete, StatusCompleteWithError, StatusShutdown:
		s.EndTime = time.Now()
	}
	if err != nil {
		s.Error = err.Error()
	}
	r.info.Stages[name] = s
}

// SetStats attaches component throughput stats to the run state so the serve
// surface can report them alongside stage status.
func (r *Runner) SetStats(s []stats.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.Stats = s
}

// SetCancelFunc registers the func used by Stop to cancel a launched run.
func (r *Runner) SetCancelFunc(f context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel = f
}

// Stop requests shutdown of a launched run. It is a no-op when the run was
// never launched asynchronously or has already finished.
func (r *Runner) Stop() {
	r.mu.Lock()
	f := r.cancel
	r.mu.Unlock()
	if f != nil {
		f()
	}
}

// IsFinished reports whether the run has reached a terminal status.
func (r *Runner) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info.Status == StatusComplete || r.info.Status == StatusCompleteWithError || r.info.Status == StatusShutdown
}

// Run executes the graph, starting each stage once all of its dependencies
// have completed. Stages with no unsatisfied dependencies run concurrently.
// The first stage error cancels the context given to the remaining stages and
// is returned once all started stages have wound down.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.info.Status = StatusRunning
	r.info.StartTime = time.Now()
	r.mu.Unlock()
	r.log.Info("Launching pipeline ", r.guid)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// One done channel per stage, closed when the stage completes successfully.
	doneChans := make(map[string]chan struct{}, len(r.graph.stages))
	for _, s := range r.graph.stages {
		doneChans[s.Name] = make(chan struct{})
	}
	errChan := make(chan error, len(r.graph.stages))
	var wg sync.WaitGroup
	for _, s := range r.graph.stages {
		wg.Add(1)
		go func(s Stage) {
			defer wg.Done()
			// Wait for dependencies.
			for _, dep := range s.DependsOn {
				select {
				case <-doneChans[dep]: // the dependency completed...
				case <-ctx.Done(): // the run was cancelled while we waited...
					r.setStageStatus(s.Name, StatusShutdown, nil)
					return
				}
			}
			if ctx.Err() != nil { // if the run was cancelled before we could start...
				r.setStageStatus(s.Name, StatusShutdown, nil)
				return
			}
			r.log.Info("Pipeline ", r.guid, " starting stage ", s.Name)
			r.setStageStatus(s.Name, StatusRunning, nil)
			err := runStageRecovered(s, ctx)
			if err != nil {
				r.log.Error("Pipeline ", r.guid, " stage ", s.Name, " failed: ", err)
				r.setStageStatus(s.Name, StatusCompleteWithError, err)
				errChan <- fmt.Errorf("stage %v: %w", s.Name, err)
				cancel() // stop the rest of the run.
				return
			}
			r.log.Info("Pipeline ", r.guid, " stage ", s.Name, " complete")
			r.setStageStatus(s.Name, StatusComplete, nil)
			close(doneChans[s.Name]) // release dependants.
		}(s)
	}
	wg.Wait()
	close(errChan)
	err := <-errChan // first error wins; nil if the channel is empty.
	r.mu.Lock()
	r.info.EndTime = time.Now()
	if err != nil {
		r.info.Status = StatusCompleteWithError
		r.info.Error = err.Error()
	} else {
		r.info.Status = StatusComplete
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.log.Info("Pipeline ", r.guid, " complete")
	return nil
}

// runStageRecovered runs the stage and converts panics into errors so one
// bad stage fails the run instead of crashing the process. Components report
// fatal conditions with log.Panic, which surfaces here as a *logrus.Entry.
func runStageRecovered(s Stage, ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil { // if there was a panic...
			// Extract the message only.
			var msg string
			x, ok := r.(*logrus.Entry)
			if ok { // if we can cast to *logrus.Entry...
				msg = x.Message
			} else if str, ok := r.(string); ok { // else assume a string...
				msg = str
			} else {
				msg = fmt.Sprintf("%v", r)
			}
			err = fmt.Errorf("%v", msg)
		}
	}()
	return s.Run(ctx)
}
