package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-service/internal/auth"
	"account-service/internal/domain"
	"account-service/internal/metrics"
	"account-service/internal/service"
	"account-service/internal/storage"
)

// Options configures NewHandler.
type Options struct {
	// UploadsDir is served under /uploads when set.
	UploadsDir string
	// BaseURL prefixes stored file names in listings. Blank derives it from the request.
	BaseURL string
	Limiter *LoginLimiter
	Metrics *metrics.Metrics
}

// Handler wires HTTP routes to the user service.
type Handler struct {
	users  service.UserService
	tokens TokenVerifier
	logger logrus.FieldLogger
	opts   Options
}

func NewHandler(users service.UserService, tokens TokenVerifier, logger logrus.FieldLogger, opts Options) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:  users,
		tokens: tokens,
		logger: logger,
		opts:   opts,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	if h.opts.Metrics != nil {
		router.Use(h.opts.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(h.opts.Metrics.Handler()))
	}
	if h.opts.UploadsDir != "" {
		router.Static("/uploads", h.opts.UploadsDir)
	}

	throttle := h.opts.Limiter.Middleware()
	requireAuth := Authenticate(h.tokens, h.users, h.logger)

	api := router.Group("/api")
	{
		api.POST("/login", throttle, h.login)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	user := api.Group("/user")
	{
		user.POST("/register", h.register)
		user.POST("/login", throttle, h.login)
		user.PATCH("/changepassword", requireAuth, h.changePassword)
		user.GET("/", h.listUsers)
		user.GET("/:id", h.getUser)
		user.PUT("/:id", h.updateUser)
		user.DELETE("/:id", h.deleteUser)
		user.GET("/:id/download/pdf", h.downloadPDF)
		user.GET("/:id/download/excel", h.downloadExcel)
		user.GET("/user/:id/download/excel", h.downloadExcel)
	}
}

type userForm struct {
	FirstName    string `form:"firstName" json:"firstName"`
	LastName     string `form:"lastName" json:"lastName"`
	Email        string `form:"email" json:"email"`
	MobileNumber string `form:"mobileNumber" json:"mobileNumber"`
	Password     string `form:"password" json:"password"`
	Role         string `form:"role" json:"role"`
}

type loginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type changePasswordRequest struct {
	OldPassword        string `form:"oldPassword" json:"oldPassword"`
	NewPassword        string `form:"newPassword" json:"newPassword"`
	ConfirmNewPassword string `form:"confirm_newPassword" json:"confirm_newPassword"`
}

func (h *Handler) register(c *gin.Context) {
	var form userForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	files, release, err := h.readUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	defer release()

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		MobileNumber: form.MobileNumber,
		Password:     form.Password,
		Role:         form.Role,
	}, files)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    userToResponse(*user),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	result, err := h.users.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful!",
		"user": gin.H{
			"id":    result.User.ID,
			"email": result.User.Email,
		},
		"token":      result.Token,
		"expires_at": result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User fetched successfully",
		"user":    userToResponse(*user),
	})
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var form userForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	files, release, err := h.readUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	defer release()

	user, err := h.users.Update(c.Request.Context(), id, service.UpdateInput{
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		MobileNumber: form.MobileNumber,
		Role:         form.Role,
		Password:     form.Password,
	}, files)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully!",
		"user":    userToResponse(*user),
	})
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.users.SoftDelete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted successfully (soft delete + file cleanup)",
		"user":    userToResponse(*user),
	})
}

func (h *Handler) changePassword(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, unauthorizedBody)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), principal.User.ID, service.ChangePasswordInput{
		OldPassword:        req.OldPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
	})
	if err != nil {
		if msg, soft := changePasswordFailure(err); soft {
			c.JSON(http.StatusOK, gin.H{"status": "failed", "message": msg})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Password changed successfully"})
}

func (h *Handler) listUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.users.List(c.Request.Context(), service.ListQuery{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	base := h.baseURL(c)
	resp := make([]UserResponse, len(result.Users))
	for i := range result.Users {
		resp[i] = userToResponse(result.Users[i])
		resp[i].ProfileImage = fileURL(base, result.Users[i].ProfileImage)
		resp[i].Document = fileURL(base, result.Users[i].Document)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Users fetched successfully",
		"totalItems":  result.TotalItems,
		"totalPages":  result.TotalPages,
		"currentPage": result.CurrentPage,
		"users":       resp,
	})
}

func (h *Handler) downloadPDF(c *gin.Context) {
	h.download(c, service.ExportPDF)
}

func (h *Handler) downloadExcel(c *gin.Context) {
	h.download(c, service.ExportExcel)
}

func (h *Handler) download(c *gin.Context, format service.ExportFormat) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.users.Export(c.Request.Context(), id, format)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// writeError maps service errors onto status codes. Unexpected errors are
// logged and reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"message": verr.Message})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials."})
	default:
		h.logger.WithField("path", c.Request.URL.Path).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

func changePasswordFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		return "All Fields are Required", true
	case errors.Is(err, service.ErrPasswordMismatch):
		return "New Password and Confirm new Password doesn't match", true
	case errors.Is(err, service.ErrWeakPassword):
		return "New Password must be at least 6 characters long", true
	case errors.Is(err, service.ErrUserNotFound):
		return "User not found", true
	case errors.Is(err, service.ErrInvalidOldPassword):
		return "Invalid old password", true
	}
	return "", false
}

// readUploads opens the optional profileImage and document parts. The release
// func closes whatever was opened.
func (h *Handler) readUploads(c *gin.Context) (service.Uploads, func(), error) {
	var (
		uploads service.Uploads
		opened  []multipart.File
	)
	release := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return uploads, release, nil
	}

	open := func(field string) (*service.FileUpload, error) {
		fh, err := c.FormFile(field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return nil, nil
			}
			return nil, fmt.Errorf("read %s: %w", field, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", field, err)
		}
		opened = append(opened, f)
		return &service.FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		}, nil
	}

	var err error
	if uploads.ProfileImage, err = open("profileImage"); err != nil {
		release()
		return service.Uploads{}, func() {}, err
	}
	if uploads.Document, err = open("document"); err != nil {
		release()
		return service.Uploads{}, func() {}, err
	}
	return uploads, release, nil
}

func (h *Handler) baseURL(c *gin.Context) string {
	if h.opts.BaseURL != "" {
		return h.opts.BaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	} else if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s/uploads", scheme, c.Request.Host)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user id"})
		return 0, false
	}
	return id, true
}

type UserResponse struct {
	ID           int64       `json:"id"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	Email        string      `json:"email"`
	MobileNumber string      `json:"mobileNumber"`
	ProfileImage *string     `json:"profileImage"`
	Document     *string     `json:"document"`
	Status       bool        `json:"status"`
	Role         domain.Role `json:"role"`
	CreatedAt    string      `json:"createdAt"`
	UpdatedAt    string      `json:"updatedAt"`
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		MobileNumber: user.MobileNumber,
		ProfileImage: user.ProfileImage,
		Document:     user.Document,
		Status:       user.Status,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    user.UpdatedAt.Format(time.RFC3339),
	}
}

func fileURL(base string, name *string) *string {
	if name == nil || *name == "" {
		return nil
	}
	v := storage.URL(base, *name)
	return &v
}
