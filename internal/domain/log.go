package domain

import "time"

// LogEntry is a single application log line persisted to the database.
type LogEntry struct {
	ID        int64
	Level     string
	Message   string
	Timestamp time.Time
}
