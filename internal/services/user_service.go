package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/pkg/crypto"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/metrics"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken signals a duplicate email at registration.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "An account with this email already exists", http.StatusConflict)
	// ErrInvalidCredentials covers both a missing account and a wrong
	// password so login failures do not leak which one it was.
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
)

const minPasswordLength = 8

// CreateUserInput describes a new local account.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
}

// UserService manages platform identities and local authentication.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, auditService: auditService}, nil
}

// Create registers a user with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := strings.TrimSpace(strings.ToLower(input.Email))
	name := strings.TrimSpace(input.Name)
	if email == "" || name == "" {
		return nil, apperrors.NewBadRequest("email and name are required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Name:     name,
		Password: hash,
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.create",
		Resource: user.ID,
		Result:   "success",
	})

	return user, nil
}

// GetByID loads a user by primary key.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads a user by normalised email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.TrimSpace(strings.ToLower(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// Authenticate verifies email+password and stamps the login time. Inactive
// accounts authenticate like missing ones.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		recordAudit(s.auditService, ctx, AuditEntry{
			Action:   "auth.login",
			Resource: user.ID,
			Result:   "failure",
		})
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: stamp login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "auth.login",
		Resource: user.ID,
		Result:   "success",
	})

	return user, nil
}

// Memberships lists every organisation the user belongs to.
func (s *UserService) Memberships(ctx context.Context, userID string) ([]models.Membership, error) {
	ctx = ensureContext(ctx)

	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Preload("Org").
		Preload("Role").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("user service: list memberships: %w", err)
	}
	return memberships, nil
}
