package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/marigoldlabs/keepsake/backend/internal/auth"
)

const minPasswordLength = 6

var (
	// ErrValidation indicates a missing or malformed registration field.
	ErrValidation = errors.New("accounts: invalid input")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("accounts: email already registered")
	// ErrInvalidCredentials covers unknown email, wrong password and bad
	// tokens alike, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")

	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingTokenIssuer = errors.New("token issuer is required")
)

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Tokens     *auth.TokenIssuer
	Logger     *zap.Logger
}

// Service registers and authenticates accounts and validates their tokens.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	ids    IDProvider
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Tokens == nil {
		return nil, errMissingTokenIssuer
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		db:     cfg.Database,
		clock:  clock,
		ids:    cfg.IDProvider,
		tokens: cfg.Tokens,
		logger: logger,
	}, nil
}

// Register creates an account and issues a session token for it.
func (s *Service) Register(ctx context.Context, email, password, name string) (User, string, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if email == "" || password == "" || name == "" {
		return User{}, "", fmt.Errorf("%w: email, password and name are required", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return User{}, "", fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return User{}, "", ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError("accounts.register", "lookup_failed", err)
		return User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logError("accounts.register", "hash_failed", err)
		return User{}, "", err
	}

	id, err := s.ids.NewID()
	if err != nil {
		s.logError("accounts.register", "id_generation_failed", err)
		return User{}, "", err
	}

	user := User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return User{}, "", ErrEmailTaken
		}
		s.logError("accounts.register", "insert_failed", err)
		return User{}, "", err
	}

	token, _, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		s.logError("accounts.register", "token_issue_failed", err, zap.String("user_id", user.ID))
		return User{}, "", err
	}

	return user, token, nil
}

// Login authenticates the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, "", fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		s.logError("accounts.login", "lookup_failed", err)
		return User{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, "", ErrInvalidCredentials
	}

	token, _, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		s.logError("accounts.login", "token_issue_failed", err, zap.String("user_id", user.ID))
		return User{}, "", err
	}

	return user, token, nil
}

// Verify validates a bearer token and resolves its subject to a live account.
func (s *Service) Verify(ctx context.Context, token string) (User, error) {
	subject, err := s.tokens.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}

	var user User
	err = s.db.WithContext(ctx).Where("id = ?", subject).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logError("accounts.verify", "lookup_failed", err, zap.String("user_id", subject))
		return User{}, err
	}

	return user, nil
}

// GetByID fetches an account by its identifier.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("accounts service error", attrs...)
}
