package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeSepia = "sepia"
)

type ReaderSettings struct {
	bun.BaseModel `bun:"table:reader_settings,alias:rs"`

	ID           int       `bun:",pk,autoincrement" json:"-"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"-"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
	UserID       string    `bun:",notnull,unique" json:"userId"`
	EpubFontSize int       `bun:",notnull,default:100" json:"epubFontSize"`
	EpubTheme    string    `bun:",notnull,default:'light'" json:"epubTheme"`
	PdfZoom      int       `bun:",notnull,default:100" json:"pdfZoom"`
}

// DefaultReaderSettings returns the settings used before a user saves any.
func DefaultReaderSettings() *ReaderSettings {
	return &ReaderSettings{
		EpubFontSize: 100,
		EpubTheme:    ThemeLight,
		PdfZoom:      100,
	}
}
