// Package auth implements the authentication gate interposed between
// dispatch and protected-state handlers, plus the OTP and PIN challenge
// machinery the login sub-flows use.
package auth

import (
	"context"
	"errors"
	"time"

	"banking-chatbot/engine/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OTPStatus is the outcome of verifying a one-time password.
type OTPStatus int

const (
	OTPValid OTPStatus = iota
	OTPExpired
	OTPMismatch
	OTPNotFound
)

var ErrNotRegistered = errors.New("owner is not a registered customer")

// Gate decides whether a session owner is currently authenticated and
// manages login lifecycle. Kept separate from the dialogue session because a
// session can span re-authentication.
type Gate interface {
	// IsAuthenticated reports whether an active, unexpired login exists.
	IsAuthenticated(ctx context.Context, owner string) (bool, error)

	// Login records a fresh authentication, deactivating prior logins for
	// the owner in the same transaction.
	Login(ctx context.Context, owner, sessionID string) error

	// Logout deactivates the owner's active login, if any.
	Logout(ctx context.Context, owner string) error

	// IssueOTP generates a one-time password for the owner, stores its
	// hash, and returns the plaintext for delivery.
	IssueOTP(ctx context.Context, owner string) (string, error)

	// VerifyOTP checks the code against the owner's latest challenge.
	VerifyOTP(ctx context.Context, owner, code string) (OTPStatus, error)

	// VerifyPIN checks the PIN against the registered customer record.
	VerifyPIN(ctx context.Context, owner, pin string) (bool, error)

	// IsRegistered reports whether the owner has a customer record.
	IsRegistered(ctx context.Context, owner string) (bool, error)

	// Customer returns the owner's customer record, or ErrNotRegistered.
	Customer(ctx context.Context, owner string) (*models.Customer, error)

	// Register creates the customer record with a hashed PIN.
	Register(ctx context.Context, owner, name, accountNumber, pin string) error
}

// GormGate is the database-backed Gate.
type GormGate struct {
	db            *gorm.DB
	loginValidity time.Duration
	otpExpiry     time.Duration
	otpLength     int
}

// NewGormGate creates a gate with the configured validity windows.
func NewGormGate(db *gorm.DB, loginValidity, otpExpiry time.Duration, otpLength int) *GormGate {
	if loginValidity <= 0 {
		loginValidity = 10 * time.Minute
	}
	if otpExpiry <= 0 {
		otpExpiry = 5 * time.Minute
	}
	if otpLength <= 0 {
		otpLength = 6
	}
	return &GormGate{
		db:            db,
		loginValidity: loginValidity,
		otpExpiry:     otpExpiry,
		otpLength:     otpLength,
	}
}

func (g *GormGate) IsAuthenticated(ctx context.Context, owner string) (bool, error) {
	var login models.AuthenticatedLogin
	err := g.db.WithContext(ctx).
		Where("owner = ? AND is_active = ?", owner, true).
		Order("authenticated_at DESC").
		First(&login).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return login.Valid(time.Now()), nil
}

func (g *GormGate) Login(ctx context.Context, owner, sessionID string) error {
	now := time.Now()
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AuthenticatedLogin{}).
			Where("owner = ? AND is_active = ?", owner, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(&models.AuthenticatedLogin{
			Owner:           owner,
			SessionID:       sessionID,
			AuthenticatedAt: now,
			ExpiresAt:       now.Add(g.loginValidity),
			IsActive:        true,
		}).Error
	})
}

func (g *GormGate) Logout(ctx context.Context, owner string) error {
	return g.db.WithContext(ctx).Model(&models.AuthenticatedLogin{}).
		Where("owner = ? AND is_active = ?", owner, true).
		Update("is_active", false).Error
}

func (g *GormGate) VerifyPIN(ctx context.Context, owner, pin string) (bool, error) {
	var customer models.Customer
	err := g.db.WithContext(ctx).Where("owner = ?", owner).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotRegistered
		}
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(customer.PINHash), []byte(pin)) == nil, nil
}

func (g *GormGate) IsRegistered(ctx context.Context, owner string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Customer{}).
		Where("owner = ?", owner).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *GormGate) Customer(ctx context.Context, owner string) (*models.Customer, error) {
	var customer models.Customer
	err := g.db.WithContext(ctx).Where("owner = ?", owner).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return &customer, nil
}

func (g *GormGate) Register(ctx context.Context, owner, name, accountNumber, pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return g.db.WithContext(ctx).Create(&models.Customer{
		Owner:         owner,
		Name:          name,
		AccountNumber: accountNumber,
		PINHash:       string(hash),
	}).Error
}
