package main

import (
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jessevdk/go-flags"
	"github.com/marginalia-app/marginalia/pkg/books"
	"github.com/marginalia-app/marginalia/pkg/epub"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

type report struct {
	Path      string         `json:"path"`
	MimeType  string         `json:"mimeType"`
	Size      int64          `json:"size"`
	Metadata  *epub.Metadata `json:"metadata,omitempty"`
	PageCount *int           `json:"pageCount,omitempty"`
}

func main() {
	log := logger.New()

	var opts struct {
		JSON bool `short:"j" long:"json" description:"Print the report as JSON"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/inspect-book <path/to/book.{epub,pdf}>")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		log.Err(err).Fatal("open file error")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Err(err).Fatal("stat file error")
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		log.Err(err).Fatal("detect mime type error")
	}
	if _, err := f.Seek(0, 0); err != nil {
		log.Err(err).Fatal("seek error")
	}

	r := report{Path: args[0], MimeType: mtype.String(), Size: info.Size()}
	kind, _ := models.FileKindForMimeType(mtype.String())
	switch kind {
	case models.FileKindEPUB:
		r.Metadata, err = epub.Parse(f, info.Size())
		if err != nil {
			log.Err(err).Fatal("epub parse error")
		}
	case models.FileKindPDF:
		n, err := books.PDFPageCount(f)
		if err != nil {
			log.Err(err).Fatal("pdf page count error")
		}
		r.PageCount = &n
	default:
		log.Fatal("not an epub or pdf", logger.Data{"mime_type": mtype.String()})
	}

	if opts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			log.Err(err).Fatal("encode error")
		}
		return
	}

	fmt.Printf("Type: %s\nSize: %d bytes\n", r.MimeType, r.Size)
	if r.Metadata != nil {
		fmt.Printf("Title: %s\nAuthor(s): %s\nLanguage: %s\nPublisher: %s\n", r.Metadata.Title, r.Metadata.Author(), r.Metadata.Language, r.Metadata.Publisher)
		if r.Metadata.PublishedYear != nil {
			fmt.Printf("Published: %d\n", *r.Metadata.PublishedYear)
		}
	}
	if r.PageCount != nil {
		fmt.Printf("Pages: %d\n", *r.PageCount)
	}
}
