// Package epub reads the package metadata of EPUB files.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const containerPath = "META-INF/container.xml"

var yearRE = regexp.MustCompile(`^\d{4}`)

// Metadata is the subset of the OPF metadata the catalog uses.
type Metadata struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description,omitempty"`
	Language      string   `json:"language,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear *int     `json:"publishedYear,omitempty"`
}

// Author returns the authors joined for display.
func (m *Metadata) Author() string {
	return strings.Join(m.Authors, ", ")
}

type container struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Description string `xml:"description"`
		Publisher   string `xml:"publisher"`
		Date        string `xml:"date"`
		Language    string `xml:"language"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
}

// Parse reads the metadata of the EPUB in r. The OPF is located through
// META-INF/container.xml, falling back to the first .opf entry for archives
// that don't have one.
func Parse(r io.ReaderAt, size int64) (*Metadata, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	opfPath := ""
	if f := findFile(zipReader, containerPath); f != nil {
		opfPath, err = rootfilePath(f)
		if err != nil {
			return nil, err
		}
	}
	if opfPath == "" {
		for _, file := range zipReader.File {
			if path.Ext(file.Name) == ".opf" {
				opfPath = file.Name
				break
			}
		}
	}

	f := findFile(zipReader, opfPath)
	if f == nil {
		return nil, errors.New("no opf file found")
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rc.Close()

	return ParseOPF(rc)
}

// ParseOPF parses an OPF package document.
func ParseOPF(r io.Reader) (*Metadata, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	err = xml.Unmarshal(b, pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// EPUB 3 attaches roles and title types through refining meta elements.
	metaProperties := map[string]map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines == "" {
			continue
		}
		key := strings.TrimPrefix(m.Refines, "#")
		if _, ok := metaProperties[key]; !ok {
			metaProperties[key] = map[string]string{}
		}
		metaProperties[key][m.Property] = strings.TrimSpace(m.Text)
	}

	title := ""
	if len(pkg.Metadata.Title) == 1 {
		title = pkg.Metadata.Title[0].Text
	} else if len(pkg.Metadata.Title) > 1 {
		title = pkg.Metadata.Title[0].Text
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
				title = t.Text
				break
			}
		}
	}

	authors := []string{}
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		name := strings.TrimSpace(creator.Text)
		if name == "" {
			continue
		}
		if role == "aut" || role == "" {
			authors = append(authors, name)
		}
	}

	var year *int
	if match := yearRE.FindString(strings.TrimSpace(pkg.Metadata.Date)); match != "" {
		if y, err := strconv.Atoi(match); err == nil {
			year = &y
		}
	}

	return &Metadata{
		Title:         strings.TrimSpace(title),
		Authors:       authors,
		Description:   plainText(pkg.Metadata.Description),
		Language:      strings.TrimSpace(pkg.Metadata.Language),
		Publisher:     strings.TrimSpace(pkg.Metadata.Publisher),
		PublishedYear: year,
	}, nil
}

func rootfilePath(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer rc.Close()

	c := &container{}
	if err := xml.NewDecoder(rc).Decode(c); err != nil {
		return "", errors.Wrap(err, "failed to parse container.xml")
	}
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "" || rf.MediaType == "application/oebps-package+xml" {
			return rf.FullPath, nil
		}
	}
	return "", nil
}

func findFile(zr *zip.Reader, name string) *zip.File {
	if name == "" {
		return nil
	}
	for _, file := range zr.File {
		if file.Name == name {
			return file
		}
	}
	return nil
}
