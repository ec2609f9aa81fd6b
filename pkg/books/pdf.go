package books

import (
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
)

var disablePDFConfigDir sync.Once

// PDFPageCount reads the page count from the PDF's page tree.
func PDFPageCount(rs io.ReadSeeker) (int, error) {
	disablePDFConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(rs, conf)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return n, nil
}
