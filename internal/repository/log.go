package repository

import (
	"context"

	"account-service/internal/domain"
)

// LogRepository stores application log lines.
type LogRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, entry domain.LogEntry) error
}
