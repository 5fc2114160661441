// Package audit is the primary post-hoc observability mechanism:
// provisioning and teardown are fire-and-forget, so every significant
// action leaves one line here.
package audit

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ringSize = 100

// Entry is one audit line: who did what to which target, and how it ended.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Outcome   string `json:"outcome"`
}

// Trail appends entries to the audit log file and keeps the most recent
// ones in memory for the activity feed.
type Trail struct {
	mu     sync.Mutex
	recent []Entry
	log    *zap.Logger
	now    func() time.Time
}

// New opens the audit trail at path. An empty path keeps the in-memory
// ring but skips the file sink (used by tests).
func New(path string) (*Trail, error) {
	logger := zap.NewNop()
	if path != "" {
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, err
		}
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.InfoLevel)
		logger = zap.New(core)
	}
	return &Trail{log: logger, now: time.Now}, nil
}

// Record writes one audit line.
func (t *Trail) Record(actor, action, target, outcome string) {
	entry := Entry{
		Timestamp: t.now().UTC().Format(time.RFC3339),
		Actor:     actor,
		Action:    action,
		Target:    target,
		Outcome:   outcome,
	}
	t.log.Info(action,
		zap.String("actor", actor),
		zap.String("target", target),
		zap.String("outcome", outcome),
	)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.recent = append([]Entry{entry}, t.recent...)
	if len(t.recent) > ringSize {
		t.recent = t.recent[:ringSize]
	}
}

// Recent returns the newest entries first, capped at the ring size.
func (t *Trail) Recent() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.recent))
	copy(out, t.recent)
	return out
}
