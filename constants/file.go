package constants

import "strings"

// Formats a document or result may be read from or written to.
const (
	FormatPDF  = "pdf"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// InputExtensions holds the file extensions picked up by batch scans.
var InputExtensions = map[string]struct{}{
	FormatPDF: {},
	FormatCSV: {},
}

// OutputFormats holds the supported export encodings.
var OutputFormats = []string{FormatXLSX, FormatJSON, FormatCSV}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func IsInputExt(ext string) bool {
	_, ok := InputExtensions[NormalizeExt(ext)]
	return ok
}

func IsOutputFormat(format string) bool {
	format = NormalizeExt(format)
	for _, f := range OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}
