package users

import (
	"context"
	"database/sql"

	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Service handles user administration.
type Service struct {
	db *bun.DB
}

// NewService creates a new users service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Retrieve gets a user by ID.
func (s *Service) Retrieve(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// ListOptions contains options for listing users.
type ListOptions struct {
	Limit  int
	Offset int
}

// List returns a paginated list of users, oldest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*models.User, int, error) {
	users := []*models.User{}

	query := s.db.NewSelect().
		Model(&users).
		Order("u.created_at ASC", "u.id ASC")

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	total, err := query.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return users, total, nil
}

// UpdateOptions contains options for updating a user.
type UpdateOptions struct {
	Columns []string
}

// Update writes the given columns of user.
func (s *Service) Update(ctx context.Context, user *models.User, opts UpdateOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	columns := append(opts.Columns, "updated_at")
	_, err := s.db.NewUpdate().
		Model(user).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// ResetPassword changes a user's password.
func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) error {
	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hashedPassword).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// VerifyPassword checks if the password is correct for a user.
func (s *Service) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Column("password_hash").
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	return auth.CheckPassword(password, user.PasswordHash), nil
}
