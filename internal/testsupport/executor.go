package testsupport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

// StubExecutor is a scripted executor for workflow tests. Each Execute call
// pops the next step from the script; when the script is exhausted the final
// step repeats. A nil step function succeeds immediately.
type StubExecutor struct {
	KindName string
	KeyFunc  func(params map[string]any) (string, error)

	mu     sync.Mutex
	script []func(ctx context.Context, params map[string]any) (map[string]any, error)
	calls  atomic.Int64

	// Started receives a signal at the top of every Execute call when set.
	Started chan struct{}
	// Release blocks Execute until closed or written to when set.
	Release chan struct{}
}

// NewStubExecutor builds a stub serving the given kind. With no steps it
// succeeds on every call.
func NewStubExecutor(kind string, steps ...func(ctx context.Context, params map[string]any) (map[string]any, error)) *StubExecutor {
	return &StubExecutor{KindName: kind, script: steps}
}

func (s *StubExecutor) Kind() string { return s.KindName }

func (s *StubExecutor) Validate(map[string]any) error { return nil }

// ContentionKey uses KeyFunc when set, otherwise a single shared key so all
// tasks of this kind serialize.
func (s *StubExecutor) ContentionKey(params map[string]any) (string, error) {
	if s.KeyFunc != nil {
		return s.KeyFunc(params)
	}
	return s.KindName, nil
}

// Calls reports how many times Execute has been invoked.
func (s *StubExecutor) Calls() int64 { return s.calls.Load() }

func (s *StubExecutor) Execute(ctx context.Context, params map[string]any, _ executor.Reporter) (map[string]any, error) {
	s.calls.Add(1)

	if s.Started != nil {
		select {
		case s.Started <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Release != nil {
		select {
		case <-s.Release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	step := s.nextStep()
	if step == nil {
		return map[string]any{"ok": true}, nil
	}
	return step(ctx, params)
}

func (s *StubExecutor) nextStep() func(ctx context.Context, params map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return nil
	}
	step := s.script[0]
	if len(s.script) > 1 {
		s.script = s.script[1:]
	}
	return step
}
