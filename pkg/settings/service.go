package settings

import (
	"context"
	"database/sql"
	"time"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type UpdateReaderSettingsOptions struct {
	EpubFontSize int
	EpubTheme    string
	PdfZoom      int
}

// GetReaderSettings retrieves reader settings for a user, returning defaults if none exist.
func (svc *Service) GetReaderSettings(ctx context.Context, userID string) (*models.ReaderSettings, error) {
	settings := &models.ReaderSettings{}
	err := svc.db.NewSelect().
		Model(settings).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Return defaults if no settings exist
			defaults := models.DefaultReaderSettings()
			defaults.UserID = userID
			return defaults, nil
		}
		return nil, errors.WithStack(err)
	}

	return settings, nil
}

// UpdateReaderSettings updates reader settings for a user, creating if not exists.
func (svc *Service) UpdateReaderSettings(ctx context.Context, userID string, opts UpdateReaderSettingsOptions) (*models.ReaderSettings, error) {
	now := time.Now()

	settings := &models.ReaderSettings{
		CreatedAt:    now,
		UpdatedAt:    now,
		UserID:       userID,
		EpubFontSize: opts.EpubFontSize,
		EpubTheme:    opts.EpubTheme,
		PdfZoom:      opts.PdfZoom,
	}

	_, err := svc.db.NewInsert().
		Model(settings).
		On("CONFLICT (user_id) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("epub_font_size = EXCLUDED.epub_font_size").
		Set("epub_theme = EXCLUDED.epub_theme").
		Set("pdf_zoom = EXCLUDED.pdf_zoom").
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, errors.WithStack(err)
	}

	return settings, nil
}
