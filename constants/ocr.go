package constants

// OCRQuality is informational; it does not change extraction.
type OCRQuality string

const (
	OCRQualityFast OCRQuality = "fast"
	OCRQualityBest OCRQuality = "best"
)

// DefaultOCRLanguage is used when callers leave the language empty.
const DefaultOCRLanguage = "eng"

// OCRLanguages lists the tesseract language codes callers may request.
var OCRLanguages = map[string]string{
	"eng":     "English",
	"spa":     "Spanish",
	"fra":     "French",
	"deu":     "German",
	"ita":     "Italian",
	"por":     "Portuguese",
	"nld":     "Dutch",
	"hin":     "Hindi",
	"ara":     "Arabic",
	"chi_sim": "Chinese (Simplified)",
	"jpn":     "Japanese",
	"rus":     "Russian",
}

func IsOCRLanguage(code string) bool {
	_, ok := OCRLanguages[code]
	return ok
}

func IsOCRQuality(q string) bool {
	return q == string(OCRQualityFast) || q == string(OCRQualityBest)
}
