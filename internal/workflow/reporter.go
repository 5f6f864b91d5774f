package workflow

import (
	"github.com/maverikod/mcp-dochub-server/internal/executor"
	"github.com/maverikod/mcp-dochub-server/internal/logging"
)

// taskReporter forwards executor progress into the store so status queries
// observe it. Write failures are logged and swallowed: a reporting hiccup
// must never fail a healthy operation.
type taskReporter struct {
	m  *Manager
	id string
}

func (m *Manager) reporterFor(id string) executor.Reporter {
	return &taskReporter{m: m, id: id}
}

func (r *taskReporter) Progress(percent float64, message string) {
	ctx, cancel := persistContext()
	defer cancel()
	if err := r.m.store.UpdateProgress(ctx, r.id, percent, message); err != nil {
		r.m.logger.Warn("failed to record task progress",
			logging.Error(err),
			logging.String(logging.FieldTaskID, r.id),
		)
	}
}

func (r *taskReporter) Log(message string) {
	ctx, cancel := persistContext()
	defer cancel()
	if err := r.m.store.AppendLog(ctx, r.id, message); err != nil {
		r.m.logger.Warn("failed to append task log",
			logging.Error(err),
			logging.String(logging.FieldTaskID, r.id),
		)
	}
}
