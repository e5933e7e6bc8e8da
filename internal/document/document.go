// Package document opens statement files and exposes per-page text and
// rasterization to the extraction pipeline.
package document

import (
	"context"
	"image"
	"strings"
)

// Kind is the classifier's verdict on a document.
type Kind int

const (
	KindScanned Kind = iota
	KindTextLayer
)

func (k Kind) String() string {
	if k == KindTextLayer {
		return "text_layer"
	}
	return "scanned"
}

// TextItem is one text fragment of a page. EOL marks the last fragment of a
// visual row.
type TextItem struct {
	Str string
	X   float64 // left edge in page units, zero when unknown
	EOL bool
}

// Document is an opened statement. Pages are 1-based.
type Document interface {
	NumPages() int
	PageText(ctx context.Context, page int) ([]TextItem, error)
	Close() error
}

// PlainTexter is implemented by documents offering a second, independent
// text extraction path for a page.
type PlainTexter interface {
	PlainText(ctx context.Context, page int) (string, error)
}

// Rasterizer renders a page to pixels at the given scale (1.0 = 72 DPI).
type Rasterizer interface {
	RasterizePage(ctx context.Context, page int, scale float64) (image.Image, error)
}

// Loader opens raw document bytes.
type Loader interface {
	Load(ctx context.Context, data []byte) (Document, error)
}

// JoinItems joins fragments with single spaces, breaking lines at row ends.
func JoinItems(items []TextItem) string {
	var b strings.Builder
	for i, it := range items {
		b.WriteString(it.Str)
		if i == len(items)-1 {
			break
		}
		if it.EOL {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// SplitRows groups fragments into visual rows.
func SplitRows(items []TextItem) [][]TextItem {
	var (
		out [][]TextItem
		cur []TextItem
	)
	for _, it := range items {
		cur = append(cur, it)
		if it.EOL {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
