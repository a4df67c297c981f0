package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

const createLogsTable = `
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);
`

type LogRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) repository.LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createLogsTable); err != nil {
		return fmt.Errorf("create logs table: %w", err)
	}
	return nil
}

func (r *LogRepository) Insert(ctx context.Context, entry domain.LogEntry) error {
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO logs (level, message, timestamp)
VALUES (?, ?, ?)`,
		entry.Level,
		entry.Message,
		entry.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}
