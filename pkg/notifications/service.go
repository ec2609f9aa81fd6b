package notifications

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type CreateOptions struct {
	// UserID targets a single user. When nil, every active user gets a copy.
	UserID  *string
	Title   string
	Message string
	BookID  *string
}

type ListOptions struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// Create stores a copy of the notification for each recipient.
func (svc *Service) Create(ctx context.Context, opts CreateOptions) ([]*models.Notification, error) {
	recipients := []string{}
	if opts.UserID != nil {
		exists, err := svc.db.NewSelect().
			Model((*models.User)(nil)).
			Where("u.id = ?", *opts.UserID).
			Exists(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if !exists {
			return nil, errcodes.NotFound("User")
		}
		recipients = append(recipients, *opts.UserID)
	} else {
		err := svc.db.NewSelect().
			Model((*models.User)(nil)).
			Column("u.id").
			Where("u.is_active = ?", true).
			Scan(ctx, &recipients)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	notifications := make([]*models.Notification, 0, len(recipients))
	if len(recipients) == 0 {
		return notifications, nil
	}

	now := time.Now()
	for _, userID := range recipients {
		notifications = append(notifications, &models.Notification{
			ID:        uuid.NewString(),
			CreatedAt: now,
			UserID:    userID,
			Title:     opts.Title,
			Message:   opts.Message,
			BookID:    opts.BookID,
		})
	}

	_, err := svc.db.NewInsert().Model(&notifications).Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("notifications created", logger.Data{"title": opts.Title, "count": len(notifications)})

	return notifications, nil
}

// List returns a user's notifications, newest first, with the total that
// matched and the number still unread.
func (svc *Service) List(ctx context.Context, opts ListOptions) ([]*models.Notification, int, error) {
	notifications := []*models.Notification{}

	q := svc.db.NewSelect().
		Model(&notifications).
		Where("n.user_id = ?", opts.UserID).
		Order("n.created_at DESC", "n.id DESC")

	if opts.UnreadOnly {
		q = q.Where("n.read_at IS NULL")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return notifications, total, nil
}

// UnreadCount returns how many of the user's notifications are unread.
func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := svc.db.NewSelect().
		Model((*models.Notification)(nil)).
		Where("n.user_id = ?", userID).
		Where("n.read_at IS NULL").
		Count(ctx)
	return count, errors.WithStack(err)
}

// MarkRead marks one of the user's notifications as read. Notifications
// belonging to someone else are reported as not found.
func (svc *Service) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	notification := &models.Notification{}
	err := svc.db.NewSelect().
		Model(notification).
		Where("n.id = ?", id).
		Where("n.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Notification")
		}
		return nil, errors.WithStack(err)
	}

	if notification.ReadAt != nil {
		return notification, nil
	}

	now := time.Now()
	notification.ReadAt = &now
	_, err = svc.db.NewUpdate().
		Model(notification).
		Column("read_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return notification, nil
}

// MarkAllRead marks every unread notification of the user as read and
// returns how many changed.
func (svc *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := svc.db.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("read_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Where("read_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return int(n), errors.WithStack(err)
}
