package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashing.
const BcryptCost = 12

// JWTClaims represents the claims in a JWT token.
type JWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type RequestSignupOptions struct {
	Email    string
	Name     string
	Password string
}

// Service handles signup, login, and session tokens.
type Service struct {
	db              *bun.DB
	jwtSecret       []byte
	sessionDuration time.Duration
	otpLength       int
	otpTTL          time.Duration
	otpMaxAttempts  int
	authRateLimit   float64
	authRateBurst   int
	sender          OTPSender
	now             func() time.Time
}

func NewService(db *bun.DB, cfg *config.Config, sender OTPSender) *Service {
	return &Service{
		db:              db,
		jwtSecret:       []byte(cfg.JWTSecret),
		sessionDuration: cfg.SessionDuration,
		otpLength:       cfg.OTPLength,
		otpTTL:          cfg.OTPTTL,
		otpMaxAttempts:  cfg.OTPMaxAttempts,
		authRateLimit:   cfg.AuthRateLimit,
		authRateBurst:   cfg.AuthRateBurst,
		sender:          sender,
		now:             time.Now,
	}
}

// CountUsers returns the total number of users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// RequestSignup stores a pending signup and sends it a fresh code. Asking
// again for the same email replaces the previous code and resets attempts.
func (s *Service) RequestSignup(ctx context.Context, opts RequestSignupOptions) error {
	email := normalizeEmail(opts.Email)

	exists, err := s.db.NewSelect().
		Model((*models.User)(nil)).
		Where("u.email = ?", email).
		Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if exists {
		return errcodes.Conflict("An account with this email already exists.")
	}

	code, err := generateCode(s.otpLength)
	if err != nil {
		return err
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return errors.WithStack(err)
	}
	passwordHash, err := HashPassword(opts.Password)
	if err != nil {
		return err
	}

	now := s.now()
	otp := &models.SignupOTP{
		CreatedAt:    now,
		Email:        email,
		Name:         strings.TrimSpace(opts.Name),
		PasswordHash: passwordHash,
		CodeHash:     string(codeHash),
		ExpiresAt:    now.Add(s.otpTTL),
	}
	_, err = s.db.NewInsert().
		Model(otp).
		On("CONFLICT (email) DO UPDATE").
		Set("created_at = EXCLUDED.created_at").
		Set("name = EXCLUDED.name").
		Set("password_hash = EXCLUDED.password_hash").
		Set("code_hash = EXCLUDED.code_hash").
		Set("expires_at = EXCLUDED.expires_at").
		Set("attempts = 0").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := s.sender.SendSignupCode(ctx, email, code); err != nil {
		return errors.Wrap(err, "failed to send signup code")
	}

	return nil
}

// VerifySignup checks the code for a pending signup and, when it matches,
// creates the user. The first user to sign up becomes an admin.
func (s *Service) VerifySignup(ctx context.Context, email, code string) (*models.User, error) {
	email = normalizeEmail(email)
	now := s.now()

	otp := &models.SignupOTP{}
	err := s.db.NewSelect().
		Model(otp).
		Where("so.email = ?", email).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errInvalidOTP()
		}
		return nil, errors.WithStack(err)
	}

	if otp.IsExpired(now) {
		return nil, errInvalidOTP()
	}
	if otp.Attempts >= s.otpMaxAttempts {
		return nil, errcodes.BadRequest("Too many incorrect attempts. Request a new code.", "otp_attempts_exceeded")
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		_, err := s.db.NewUpdate().
			Model(otp).
			Set("attempts = attempts + 1").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return nil, errInvalidOTP()
	}

	user := &models.User{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        email,
		Name:         otp.Name,
		PasswordHash: otp.PasswordHash,
		Role:         models.RoleReader,
		IsActive:     true,
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// The same code can't be redeemed twice.
		res, err := tx.NewDelete().
			Model((*models.SignupOTP)(nil)).
			Where("id = ?", otp.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errInvalidOTP()
		}

		count, err := tx.NewSelect().Model((*models.User)(nil)).Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}

		exists, err := tx.NewSelect().
			Model((*models.User)(nil)).
			Where("u.email = ?", email).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			return errcodes.Conflict("An account with this email already exists.")
		}

		_, err = tx.NewInsert().Model(user).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("user signed up", logger.Data{"user_id": user.ID, "role": user.Role})

	return user, nil
}

// Authenticate validates credentials and returns the user if valid.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.email = ?", normalizeEmail(email)).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errcodes.Unauthorized("Invalid email or password")
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, errcodes.Unauthorized("Invalid email or password")
	}

	return user, nil
}

// GenerateToken creates a new JWT token for the user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := JWTClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// GetUserByID retrieves an active user by ID.
func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// CleanupExpiredOTPs removes pending signups whose code has expired and
// returns how many were removed.
func (s *Service) CleanupExpiredOTPs(ctx context.Context) (int, error) {
	res, err := s.db.NewDelete().
		Model((*models.SignupOTP)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return int(n), errors.WithStack(err)
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a password with a hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func errInvalidOTP() error {
	return errcodes.BadRequest("Invalid or expired code.", "invalid_otp")
}
