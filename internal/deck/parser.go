// Package deck parses slide-deck documents into their ordered slides.
//
// Only the PPTX container is supported: the document is a zip archive whose
// slides live at ppt/slides/slideN.xml, and the visible text of a slide is
// the set of text runs (<a:t> elements) inside it.
package deck

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/slidecast/deck2video/internal/core"
)

// XML element names carrying slide text structure.
const (
	elemTextRun   = "t"
	elemParagraph = "p"
)

var slideEntryPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Parser implements core.DeckParser for PPTX documents.
type Parser struct{}

// NewParser creates a PPTX deck parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts the ordered slides of a PPTX document. Slide indices in the
// result are contiguous and 1-based, matching source document order. A valid
// archive with no slides yields an empty slice and no error.
func (p *Parser) Parse(document []byte) ([]core.Slide, error) {
	reader, err := zip.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, fmt.Errorf("failed to open deck archive: %w", err)
	}

	type slideEntry struct {
		number int
		file   *zip.File
	}

	var entries []slideEntry

	for _, file := range reader.File {
		match := slideEntryPattern.FindStringSubmatch(file.Name)
		if match == nil {
			continue
		}

		number, convErr := strconv.Atoi(match[1])
		if convErr != nil {
			continue
		}

		entries = append(entries, slideEntry{number: number, file: file})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].number < entries[j].number
	})

	slides := make([]core.Slide, 0, len(entries))

	for position, entry := range entries {
		text, textErr := extractSlideText(entry.file)
		if textErr != nil {
			return nil, fmt.Errorf("failed to read slide %d: %w", entry.number, textErr)
		}

		// Indices are renumbered contiguously from 1 in archive order.
		slides = append(slides, core.Slide{
			Index: position + 1,
			Text:  text,
		})
	}

	return slides, nil
}

// extractSlideText collects the text runs of one slide XML document,
// separating paragraphs with newlines.
func extractSlideText(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open archive entry: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)

	var (
		paragraphs []string
		paragraph  strings.Builder
		inTextRun  bool
	)

	for {
		token, tokenErr := decoder.Token()
		if tokenErr == io.EOF {
			break
		}

		if tokenErr != nil {
			return "", fmt.Errorf("failed to decode slide XML: %w", tokenErr)
		}

		switch element := token.(type) {
		case xml.StartElement:
			if element.Name.Local == elemTextRun {
				inTextRun = true
			}
		case xml.CharData:
			if inTextRun {
				paragraph.Write(element)
			}
		case xml.EndElement:
			if element.Name.Local == elemTextRun {
				inTextRun = false
			}

			if element.Name.Local == elemParagraph && paragraph.Len() > 0 {
				paragraphs = append(paragraphs, paragraph.String())
				paragraph.Reset()
			}
		}
	}

	if paragraph.Len() > 0 {
		paragraphs = append(paragraphs, paragraph.String())
	}

	return strings.Join(paragraphs, "\n"), nil
}
