package pipeline

import (
	"fmt"
	"sync"
)

// SafeMapRunInfo tracks launched pipelines by GUID for status queries.
type SafeMapRunInfo struct {
	sync.Mutex
	internal map[string]*Runner
}

func NewSafeMapRunInfo() *SafeMapRunInfo {
	return &SafeMapRunInfo{internal: make(map[string]*Runner)}
}

func (m *SafeMapRunInfo) Store(r *Runner) {
	m.Lock()
	defer m.Unlock()
	m.internal[r.Guid()] = r
}

func (m *SafeMapRunInfo) Load(guid string) (*Runner, bool) {
	m.Lock()
	defer m.Unlock()
	r, ok := m.internal[guid]
	return r, ok
}

// GetAll returns the run state of every known pipeline.
func (m *SafeMapRunInfo) GetAll() []RunInfo {
	m.Lock()
	defer m.Unlock()
	infos := make([]RunInfo, 0, len(m.internal))
	for _, r := range m.internal {
		infos = append(infos, r.Info())
	}
	return infos
}

// RunLock serialises pipelines per target so two ingests can't reconcile the
// same fact table at the same time.
type RunLock struct {
	mu     sync.Mutex
	active map[string]string // target name to the GUID holding the lock.
}

func NewRunLock() *RunLock {
	return &RunLock{active: make(map[string]string)}
}

// TryLock claims the given target for guid. It returns a release func on
// success and an error naming the holder when the target is already locked.
func (l *RunLock) TryLock(target string, guid string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, busy := l.active[target]; busy {
		return nil, fmt.Errorf("target %v is locked by pipeline %v", target, holder)
	}
	l.active[target] = guid
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.active, target)
	}, nil
}
