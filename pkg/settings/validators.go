package settings

// ReaderSettingsPayload is the request body for updating reader settings.
type ReaderSettingsPayload struct {
	EpubFontSize int    `json:"epubFontSize" validate:"required,min=50,max=300"`
	EpubTheme    string `json:"epubTheme" mod:"trim,lcase" validate:"required,oneof=light dark sepia"`
	PdfZoom      int    `json:"pdfZoom" validate:"required,min=25,max=400"`
}

// ReaderSettingsResponse is the response for reader settings.
type ReaderSettingsResponse struct {
	EpubFontSize int    `json:"epubFontSize"`
	EpubTheme    string `json:"epubTheme"`
	PdfZoom      int    `json:"pdfZoom"`
}
