package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

// DBHook copies log entries into the logs table.
type DBHook struct {
	logs    repository.LogRepository
	levels  []logrus.Level
	timeout time.Duration
	errOut  io.Writer
}

// NewDBHook persists entries at minLevel or more severe.
func NewDBHook(logs repository.LogRepository, minLevel logrus.Level) *DBHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, lvl := range logrus.AllLevels {
		if lvl <= minLevel {
			levels = append(levels, lvl)
		}
	}
	return &DBHook{
		logs:    logs,
		levels:  levels,
		timeout: 2 * time.Second,
		errOut:  os.Stderr,
	}
}

func (h *DBHook) Levels() []logrus.Level {
	return h.levels
}

// Fire always returns nil; insert failures are written to errOut.
func (h *DBHook) Fire(entry *logrus.Entry) error {
	message := entry.Message
	if len(entry.Data) > 0 {
		if line, err := (&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true}).Format(entry); err == nil {
			message = string(trimNewline(line))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.logs.Insert(ctx, domain.LogEntry{
		Level:     entry.Level.String(),
		Message:   message,
		Timestamp: entry.Time,
	})
	if err != nil {
		fmt.Fprintf(h.errOut, "log hook: %v\n", err)
	}
	return nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
