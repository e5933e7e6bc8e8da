package document

import (
	"context"
	"unicode/utf8"
)

// DefaultScannedThreshold is the page-1 character count below which a
// document is treated as scanned.
const DefaultScannedThreshold = 100

// Classify decides from page-1 text items whether a document carries a
// usable text layer.
func Classify(items []TextItem, threshold int) Kind {
	total := 0
	for _, it := range items {
		total += utf8.RuneCountInString(it.Str)
		if total >= threshold {
			return KindTextLayer
		}
	}
	if total >= threshold {
		return KindTextLayer
	}
	return KindScanned
}

// ClassifyDocument reads page 1 of doc. Any failure yields KindScanned.
func ClassifyDocument(ctx context.Context, doc Document, threshold int) Kind {
	if doc == nil || doc.NumPages() < 1 {
		return KindScanned
	}
	items, err := doc.PageText(ctx, 1)
	if err != nil {
		return KindScanned
	}
	return Classify(items, threshold)
}
