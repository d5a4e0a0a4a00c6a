package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"banking-chatbot/engine/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func (g *GormGate) IssueOTP(ctx context.Context, owner string) (string, error) {
	code, err := randomDigits(g.otpLength)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	now := time.Now()
	challenge := models.OTPChallenge{
		Owner:       owner,
		CodeHash:    string(hash),
		GeneratedAt: now,
		ExpiresAt:   now.Add(g.otpExpiry),
	}

	// A fresh challenge supersedes any outstanding one for the owner.
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OTPChallenge{}).
			Where("owner = ? AND consumed_at IS NULL", owner).
			Update("consumed_at", now).Error; err != nil {
			return err
		}
		return tx.Create(&challenge).Error
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func (g *GormGate) VerifyOTP(ctx context.Context, owner, code string) (OTPStatus, error) {
	var challenge models.OTPChallenge
	err := g.db.WithContext(ctx).
		Where("owner = ? AND consumed_at IS NULL", owner).
		Order("generated_at DESC").
		First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OTPNotFound, nil
		}
		return OTPNotFound, err
	}

	// Expiry is checked before the hash so a correct-but-stale code still
	// reads as expired to the user.
	if challenge.Expired(time.Now()) {
		return OTPExpired, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		g.db.WithContext(ctx).Model(&challenge).Update("attempts", challenge.Attempts+1)
		return OTPMismatch, nil
	}

	now := time.Now()
	if err := g.db.WithContext(ctx).Model(&challenge).Update("consumed_at", now).Error; err != nil {
		return OTPValid, err
	}
	return OTPValid, nil
}

// randomDigits returns a cryptographically random numeric code of length n.
func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
