package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        string     `bun:",pk" json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	UserID    string     `bun:",nullzero" json:"userId"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	BookID    *string    `json:"bookId,omitempty"`
	ReadAt    *time.Time `json:"readAt"`
}
