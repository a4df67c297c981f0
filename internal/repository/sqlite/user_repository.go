package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	mobile_number TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	profile_image TEXT NULL,
	document TEXT NULL,
	status INTEGER NOT NULL DEFAULT 1,
	role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const createUsersIndex = `CREATE INDEX IF NOT EXISTS idx_users_status_created_at ON users(status, created_at);`

// columns introduced after the first release of the users table
var lateUserColumns = []column{
	{name: "profile_image", ddl: `profile_image TEXT NULL`},
	{name: "document", ddl: `document TEXT NULL`},
	{name: "status", ddl: `status INTEGER NOT NULL DEFAULT 1`},
	{name: "role", ddl: `role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user'))`},
}

const userColumns = `id, first_name, last_name, email, mobile_number, password_hash, profile_image, document, status, role, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	if err := ensureColumns(ctx, r.db, "users", lateUserColumns); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, createUsersIndex); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	if !user.Role.Valid() {
		return 0, fmt.Errorf("insert user: invalid role %q", user.Role)
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (first_name, last_name, email, mobile_number, password_hash, profile_image, document, status, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.FirstName,
		user.LastName,
		user.Email,
		user.MobileNumber,
		user.PasswordHash,
		nullString(user.ProfileImage),
		nullString(user.Document),
		user.Status,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user: %w", repository.ErrDuplicateEmail)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	if !user.Role.Valid() {
		return fmt.Errorf("update user: invalid role %q", user.Role)
	}
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET first_name=?, last_name=?, email=?, mobile_number=?, password_hash=?, profile_image=?, document=?, status=?, role=?, updated_at=?
WHERE id=?`,
		user.FirstName,
		user.LastName,
		user.Email,
		user.MobileNumber,
		user.PasswordHash,
		nullString(user.ProfileImage),
		nullString(user.Document),
		user.Status,
		string(user.Role),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user: %w", repository.ErrDuplicateEmail)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res, "update user")
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET password_hash=?, updated_at=?
WHERE id=?`,
		passwordHash,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res, "update password")
}

func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET status=0, profile_image=NULL, document=NULL, updated_at=?
WHERE id=?`,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	return requireAffected(res, "soft delete user")
}

func (r *UserRepository) ListActive(ctx context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	where := `status = 1`
	var args []any
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		where += ` AND (
	LOWER(first_name) LIKE ? ESCAPE '\' OR
	LOWER(last_name) LIKE ? ESCAPE '\' OR
	LOWER(email) LIKE ? ESCAPE '\' OR
	LOWER(mobile_number) LIKE ? ESCAPE '\'
)`
		args = append(args, pattern, pattern, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE `+where+`
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`, append(args, filter.Limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user         domain.User
		role         string
		profileImage sql.NullString
		document     sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.MobileNumber,
		&user.PasswordHash,
		&profileImage,
		&document,
		&user.Status,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Role = domain.Role(role)
	if profileImage.Valid {
		user.ProfileImage = &profileImage.String
	}
	if document.Valid {
		user.Document = &document.String
	}
	return &user, nil
}

func requireAffected(res sql.Result, op string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if aff == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
