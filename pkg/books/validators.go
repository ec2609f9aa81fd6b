package books

import "mime/multipart"

type ListBooksQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Query  *string `query:"q" json:"q,omitempty" mod:"trim" validate:"omitempty,max=100"`
}

type CreateBookPayload struct {
	Title         string `json:"title" mod:"trim" validate:"required,max=300"`
	Author        string `json:"author" mod:"trim" validate:"max=300"`
	Description   string `json:"description" mod:"trim" validate:"max=5000"`
	Language      string `json:"language" mod:"trim" validate:"omitempty,language"`
	PublishedYear *int   `json:"publishedYear" validate:"omitempty,min=0,max=9999"`
}

type UpdateBookPayload struct {
	Title         *string `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=300"`
	Author        *string `json:"author,omitempty" mod:"trim" validate:"omitempty,max=300"`
	Description   *string `json:"description,omitempty" mod:"trim" validate:"omitempty,max=5000"`
	Language      *string `json:"language,omitempty" mod:"trim" validate:"omitempty,language"`
	PublishedYear *int    `json:"publishedYear,omitempty" validate:"omitempty,min=0,max=9999"`
}

// UploadFilePayload receives the multipart upload. The file is expected in
// the "file" field.
type UploadFilePayload struct {
	FormFiles map[string]*multipart.FileHeader `form:"-"`
}
