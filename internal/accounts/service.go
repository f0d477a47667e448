package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterRequest is the input of account registration.
type RegisterRequest struct {
	FullName        string
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	SignupCode      string // checked for admin registrations only
}

// UpdateUserRequest carries the profile fields an admin may change.
// Nil fields are left untouched. Balances are not editable here: they only
// move through ledger operations.
type UpdateUserRequest struct {
	FullName *string
	Username *string
	Email    *string
}

// Service manages accounts and their sessions.
type Service struct {
	db  *gorm.DB
	cfg config.Auth
	log *zap.Logger
	now func() time.Time
}

// NewService creates a new account service.
func NewService(db *gorm.DB, cfg config.Auth, log *zap.Logger) *Service {
	return &Service{
		db:  db,
		cfg: cfg,
		log: log.Named("accounts"),
		now: time.Now,
	}
}

// Register validates req and creates an account with the given role.
func (s *Service) Register(ctx context.Context, req RegisterRequest, role models.Role) (*models.Account, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.FullName == "" || req.Username == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, apperr.Invalid("empty fields, all of full name, username, email, password and confirmation are required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, apperr.Invalid("passwords do not match")
	}
	if err := validateProfile(req.FullName, req.Username, req.Email); err != nil {
		return nil, err
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperr.Invalid("unknown role %q", role)
	}
	if role == models.RoleAdmin && s.cfg.AdminSignupCode != "" && req.SignupCode != s.cfg.AdminSignupCode {
		return nil, apperr.ErrForbidden
	}

	cost := s.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		return nil, apperr.Invalid("password cannot be hashed: %v", err)
	}

	account := &models.Account{
		FullName:      req.FullName,
		Username:      req.Username,
		Email:         req.Email,
		AccountNumber: uuid.NewString(),
		PasswordHash:  string(hash),
		Role:          role,
		Balance:       decimal.Zero,
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ErrAccountExists
		}
		s.log.Error("Failed to create account", zap.String("username", req.Username), zap.Error(err))
		return nil, apperr.Persistence("create account", err)
	}

	s.log.Info("Account created", zap.Uint("account_id", account.ID), zap.String("role", string(role)))
	return account, nil
}

// SignIn checks the credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, username, password string) (*models.Session, *models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, nil, apperr.Invalid("empty fields, username and password are required")
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, apperr.Persistence("load account", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, nil, apperr.ErrInvalidCredentials
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: s.now().Add(s.cfg.SessionTTL).UTC(),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, nil, apperr.Persistence("create session", err)
	}
	return session, &account, nil
}

// SignOut ends the session identified by token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error; err != nil {
		return apperr.Persistence("delete session", err)
	}
	return nil
}

// Authenticate resolves a session token to its principal.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, apperr.ErrUnauthorized
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Principal{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Principal{}, apperr.Persistence("load session", err)
	}
	if !s.now().Before(session.ExpiresAt) {
		_ = s.SignOut(ctx, token)
		return Principal{}, apperr.ErrUnauthorized
	}

	var account models.Account
	err = s.db.WithContext(ctx).First(&account, session.AccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Principal{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Principal{}, apperr.Persistence("load account", err)
	}
	return Principal{AccountID: account.ID, Username: account.Username, Role: account.Role}, nil
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrAccountNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("load account", err)
	}
	return &account, nil
}

// ListUsers returns every trading user ordered by full name.
func (s *Service) ListUsers(ctx context.Context, actor Principal) ([]models.Account, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	var users []models.Account
	if err := s.db.WithContext(ctx).Where("role = ?", models.RoleUser).Order("full_name").Find(&users).Error; err != nil {
		return nil, apperr.Persistence("list users", err)
	}
	return users, nil
}

// UpdateUser changes the profile of account id.
func (s *Service) UpdateUser(ctx context.Context, actor Principal, id uint, req UpdateUserRequest) (*models.Account, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.FullName != nil {
		account.FullName = strings.TrimSpace(*req.FullName)
		updates["full_name"] = account.FullName
	}
	if req.Username != nil {
		account.Username = strings.TrimSpace(*req.Username)
		updates["username"] = account.Username
	}
	if req.Email != nil {
		account.Email = strings.TrimSpace(*req.Email)
		updates["email"] = account.Email
	}
	if len(updates) == 0 {
		return account, nil
	}
	if err := validateProfile(account.FullName, account.Username, account.Email); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(updates).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.ErrAccountExists
	}
	if err != nil {
		return nil, apperr.Persistence("update account", err)
	}

	s.log.Info("Account updated", zap.Uint("account_id", id), zap.Uint("by", actor.AccountID))
	return s.Get(ctx, id)
}

// DeleteUser soft-deletes account id and ends its sessions. Orders and
// ledger entries are kept.
func (s *Service) DeleteUser(ctx context.Context, actor Principal, id uint) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if actor.AccountID == id {
		return apperr.ErrForbidden
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Account{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrAccountNotFound
		}
		return tx.Where("account_id = ?", id).Delete(&models.Session{}).Error
	})
	if err != nil {
		return apperr.Persistence("delete account", err)
	}

	s.log.Info("Account deleted", zap.Uint("account_id", id), zap.Uint("by", actor.AccountID))
	return nil
}

func validateProfile(fullName, username, email string) error {
	if fullName == "" || username == "" || email == "" {
		return apperr.Invalid("full name, username and email cannot be empty")
	}
	if len(fullName) > 50 || len(username) > 50 || len(email) > 50 {
		return apperr.Invalid("full name, username and email are limited to 50 characters")
	}
	if strings.ContainsAny(username, " \t\n") {
		return apperr.Invalid("username cannot contain whitespace")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Invalid("email %q is not valid", email)
	}
	return nil
}
