package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Blob is an immutable piece of content addressed by the SHA-256 of its
// bytes. The bytes live in BlobChunk rows numbered from 0.
type Blob struct {
	bun.BaseModel `bun:"table:blobs,alias:bl"`

	ID         string    `bun:",pk" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	ChunkSize  int       `json:"chunkSize"`
	ChunkCount int       `json:"chunkCount"`
}

type BlobChunk struct {
	bun.BaseModel `bun:"table:blob_chunks,alias:bc"`

	BlobID string `bun:",pk"`
	N      int    `bun:",pk"`
	Data   []byte
}
