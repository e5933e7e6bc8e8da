package ocr

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-=|]{3,}\s*$`)
	reDigitO     = regexp.MustCompile(`(\d)[Oo]`)
	reLeadingO   = regexp.MustCompile(`\b[Oo](\d)`)
	reDigitL     = regexp.MustCompile(`(\d)[lI|](\d)`)
)

var punctFolder = strings.NewReplacer(
	"‘", "'", "’", "'", "“", `"`, "”", `"`,
	"–", "-", "‒", "-", "−", "-",
)

// Normalize cleans recognized text before line parsing. Line breaks are
// kept since the parser works per line.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = punctFolder.Replace(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = repairDigits(strings.TrimRight(lines[i], " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// repairDigits fixes letters tesseract reads in place of 0 and 1 inside numbers.
func repairDigits(ln string) string {
	ln = reLeadingO.ReplaceAllString(ln, "0${1}")
	for {
		next := reDigitO.ReplaceAllString(ln, "${1}0")
		next = reDigitL.ReplaceAllString(next, "${1}1${2}")
		if next == ln {
			return ln
		}
		ln = next
	}
}
