package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"refledger/events"
	"refledger/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLifetime        = 24 * time.Hour

	// uniqueViolation is the Postgres error code for duplicate keys
	uniqueViolation = "23505"
)

// userService implements the UserService interface
type userService struct {
	uowFactory        UnitOfWorkFactory
	referralService   ReferralService
	registrationBonus decimal.Decimal
	tokenSecret       []byte
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, referralService ReferralService, registrationBonus decimal.Decimal, tokenSecret []byte) UserService {
	return &userService{
		uowFactory:        uowFactory,
		referralService:   referralService,
		registrationBonus: registrationBonus,
		tokenSecret:       tokenSecret,
	}
}

// Register creates an account and, when the referral code resolves to an
// existing user, propagates commissions up that user's upline. The user row,
// every earning row, every ledger entry, and every ancestor credit commit or
// roll back together.
func (s *userService) Register(ctx context.Context, email, username, password, referralCodeInput string) (*models.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	referralCodeInput = strings.TrimSpace(referralCodeInput)

	if email == "" || username == "" || password == "" {
		return nil, "", ErrMissingFields
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, _, err := uow.UserRepository().GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing email: %w", err)
	}
	if existing != nil {
		return nil, "", ErrDuplicateEmail
	}

	var referredByID *int64
	if referralCodeInput != "" {
		referrer, err := uow.UserRepository().GetByReferralCode(ctx, referralCodeInput)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve referral code: %w", err)
		}
		// An unknown code is ignored, not rejected
		if referrer != nil {
			referredByID = &referrer.ID
		}
	}

	referralCode, err := s.generateReferralCode(ctx, uow)
	if err != nil {
		return nil, "", err
	}

	user, err := uow.UserRepository().Create(ctx, email, username, string(passwordHash), referralCode, referredByID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, "", ErrDuplicateEmail
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	if referredByID != nil {
		if err := s.referralService.PropagateRegistrationBonus(ctx, uow, user.ID, *referredByID, s.registrationBonus); err != nil {
			return nil, "", fmt.Errorf("failed to propagate referral bonus: %w", err)
		}
	}

	uow.EventBus().Publish(events.UserRegisteredEvent{
		UserID:       user.ID,
		Username:     user.Username,
		ReferralCode: user.ReferralCode,
		ReferredByID: referredByID,
	})

	if err := uow.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":   user.ID,
		"referred": referredByID != nil,
	}).Info("User registered")

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login checks credentials and returns the user with a fresh token.
func (s *userService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, "", ErrMissingFields
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, passwordHash, err := uow.UserRepository().GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetByID retrieves a user
func (s *userService) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// ValidateToken resolves a signed token to the user id it was issued for.
func (s *userService) ValidateToken(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.tokenSecret, nil
	})
	if err != nil {
		return 0, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

func (s *userService) issueToken(userID int64) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// generateReferralCode produces a fresh 8-character code, retrying on the
// rare collision with an existing user's code.
func (s *userService) generateReferralCode(ctx context.Context, uow UnitOfWork) (string, error) {
	for {
		code, err := randomReferralCode()
		if err != nil {
			return "", err
		}

		exists, err := uow.UserRepository().ReferralCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
}

func randomReferralCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(referralCodeAlphabet)))
	code := make([]byte, referralCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		code[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
