package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"account-service/internal/domain"
	"account-service/internal/export"
	"account-service/internal/repository"
	"account-service/internal/storage"
)

const (
	DefaultPageSize = 6
	MaxPageSize     = 100
)

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TokenIssuer signs bearer tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(userID int64, email string) (string, time.Time, error)
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput, files Uploads) (*domain.User, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, id int64, in UpdateInput, files Uploads) (*domain.User, error)
	ChangePassword(ctx context.Context, userID int64, in ChangePasswordInput) error
	SoftDelete(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, q ListQuery) (*ListResult, error)
	Export(ctx context.Context, id int64, format ExportFormat) (*Document, error)
}

type RegisterInput struct {
	FirstName    string `json:"firstName" validate:"required,min=3,max=50"`
	LastName     string `json:"lastName" validate:"required,min=3,max=50"`
	Email        string `json:"email" validate:"required,email"`
	MobileNumber string `json:"mobileNumber" validate:"required"`
	Password     string `json:"password" validate:"required,min=6"`
	Role         string `json:"role" validate:"omitempty,oneof=admin user"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type UpdateInput struct {
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	MobileNumber string `json:"mobileNumber" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=admin user"`
	// Password replaces the current one only when non-blank.
	Password string `json:"password" validate:"omitempty,min=6"`
}

type ChangePasswordInput struct {
	OldPassword        string
	NewPassword        string
	ConfirmNewPassword string
}

// FileUpload is one file received with a register or update request.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Uploads holds the optional files accepted by register and update.
type Uploads struct {
	ProfileImage *FileUpload
	Document     *FileUpload
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

type ListQuery struct {
	Search string
	Page   int
	Limit  int
}

type ListResult struct {
	Users       []domain.User
	TotalItems  int
	TotalPages  int
	CurrentPage int
	Limit       int
}

type ExportFormat string

const (
	ExportPDF   ExportFormat = "pdf"
	ExportExcel ExportFormat = "excel"
)

// Document is a rendered export ready to be sent as an attachment.
type Document struct {
	FileName    string
	ContentType string
	Body        []byte
}

// Options tunes NewUserService.
type Options struct {
	// MaxUploadBytes rejects larger uploads; zero disables the check.
	MaxUploadBytes int64
}

type userService struct {
	users    repository.UserRepository
	hasher   Hasher
	tokens   TokenIssuer
	files    storage.FileStore
	logger   logrus.FieldLogger
	validate *validator.Validate
	opts     Options
}

func NewUserService(users repository.UserRepository, hasher Hasher, tokens TokenIssuer, files storage.FileStore, logger logrus.FieldLogger, opts Options) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		files:    files,
		logger:   logger,
		validate: newValidator(),
		opts:     opts,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput, files Uploads) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.MobileNumber = strings.TrimSpace(in.MobileNumber)
	in.Role = strings.TrimSpace(in.Role)

	if err := validateStruct(s.validate, in); err != nil {
		s.logger.Warnf("Validation failed: %v", err)
		return nil, err
	}
	if err := s.checkUploads(files); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if in.Role != "" {
		role = domain.Role(in.Role)
	}

	user := &domain.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		MobileNumber: in.MobileNumber,
		PasswordHash: hash,
		Status:       true,
		Role:         role,
	}

	saved, err := s.storeUploads(ctx, user, files)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		s.discard(ctx, saved)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Infof("New user created: %s", user.Email)
	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(s.validate, in); err != nil {
		s.logger.WithField("error", err.Error()).Warn("Validation failed during login")
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warnf("Login failed - user not found: %s", in.Email)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.logger.Warnf("Login failed - invalid credentials for: %s", in.Email)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *sanitizeUser(user),
	}, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Update(ctx context.Context, id int64, in UpdateInput, files Uploads) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.MobileNumber = strings.TrimSpace(in.MobileNumber)
	in.Role = strings.TrimSpace(in.Role)
	if strings.TrimSpace(in.Password) == "" {
		in.Password = ""
	}

	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if err := s.checkUploads(files); err != nil {
		return nil, err
	}

	user, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Email = in.Email
	user.MobileNumber = in.MobileNumber
	user.Role = domain.Role(in.Role)

	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	// previous files stay in storage when replaced
	saved, err := s.storeUploads(ctx, user, files)
	if err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		s.discard(ctx, saved)
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.Infof("User updated. ID: %d, Email: %s", user.ID, user.Email)
	return sanitizeUser(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int64, in ChangePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" || in.ConfirmNewPassword == "" {
		return ErrMissingFields
	}
	if in.NewPassword != in.ConfirmNewPassword {
		return ErrPasswordMismatch
	}
	if len(in.NewPassword) < 6 {
		return ErrWeakPassword
	}

	user, err := s.lookup(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.OldPassword, user.PasswordHash) {
		return ErrInvalidOldPassword
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Infof("Password changed. ID: %d", user.ID)
	return nil
}

// SoftDelete marks the account inactive and clears its file references. File
// removal is best effort: failures are logged and the row is updated anyway.
func (s *userService) SoftDelete(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warnf("Delete failed: User not found. ID: %d", id)
		}
		return nil, err
	}

	for _, ref := range []*string{user.ProfileImage, user.Document} {
		if ref == nil || *ref == "" {
			continue
		}
		if err := s.files.Remove(ctx, *ref); err != nil {
			s.logger.Warnf("Failed to delete file: %s - %v", *ref, err)
			continue
		}
		s.logger.Infof("Deleted file: %s", *ref)
	}

	if err := s.users.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	deleted, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("User soft-deleted successfully. ID: %d, Email: %s", deleted.ID, deleted.Email)
	return sanitizeUser(deleted), nil
}

func (s *userService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	users, total, err := s.users.ListActive(ctx, repository.UserFilter{
		Search: q.Search,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	for i := range users {
		users[i].PasswordHash = ""
	}

	return &ListResult{
		Users:       users,
		TotalItems:  total,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
		CurrentPage: page,
		Limit:       limit,
	}, nil
}

func (s *userService) Export(ctx context.Context, id int64, format ExportFormat) (*Document, error) {
	user, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	doc := &Document{}
	switch format {
	case ExportPDF:
		if err := export.WriteUserPDF(&buf, *user); err != nil {
			return nil, err
		}
		doc.FileName = export.PDFFileName(user.ID)
		doc.ContentType = export.PDFContentType
	case ExportExcel:
		if err := export.WriteUserExcel(&buf, *user); err != nil {
			return nil, err
		}
		doc.FileName = export.ExcelFileName(user.ID)
		doc.ContentType = export.ExcelContentType
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	doc.Body = buf.Bytes()
	return doc, nil
}

func (s *userService) lookup(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user %d: %w", id, err)
	}
	return user, nil
}

func (s *userService) checkUploads(files Uploads) error {
	if s.opts.MaxUploadBytes <= 0 {
		return nil
	}
	check := func(field string, f *FileUpload) error {
		if f != nil && f.Size > s.opts.MaxUploadBytes {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q must not exceed %d bytes", field, s.opts.MaxUploadBytes),
			}
		}
		return nil
	}
	if err := check("profileImage", files.ProfileImage); err != nil {
		return err
	}
	return check("document", files.Document)
}

// storeUploads saves the supplied files and points user at them. It returns the
// stored names so a failed write can discard them.
func (s *userService) storeUploads(ctx context.Context, user *domain.User, files Uploads) ([]string, error) {
	var saved []string
	put := func(f *FileUpload) (*string, error) {
		name := storage.NewObjectName(f.Filename)
		if err := s.files.Save(ctx, name, f.ContentType, f.Content); err != nil {
			return nil, fmt.Errorf("store %s: %w", f.Filename, err)
		}
		saved = append(saved, name)
		return &name, nil
	}

	if files.ProfileImage != nil {
		name, err := put(files.ProfileImage)
		if err != nil {
			return nil, err
		}
		user.ProfileImage = name
	}
	if files.Document != nil {
		name, err := put(files.Document)
		if err != nil {
			s.discard(ctx, saved)
			return nil, err
		}
		user.Document = name
	}
	return saved, nil
}

func (s *userService) discard(ctx context.Context, names []string) {
	for _, name := range names {
		if err := s.files.Remove(ctx, name); err != nil {
			s.logger.Warnf("Failed to discard file: %s - %v", name, err)
		}
	}
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	cp := *user
	cp.PasswordHash = ""
	return &cp
}
