package parsefields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

var (
	reDate = regexp.MustCompile(`(?i)\b(?:\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{2,4})\b`)
	// thousands-grouped form is tried before the plain digit run
	reAmount = regexp.MustCompile(`(?:[$€£₹¥]\s?)?-?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}\b`)
	reSpaces = regexp.MustCompile(`\s+`)
	reDebit  = regexp.MustCompile(`(?i)debit`)
)

// MatchDate returns the first date-looking substring of line.
func MatchDate(line string) (string, bool) {
	loc := reDate.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	return line[loc[0]:loc[1]], true
}

// amountLocs returns the spans of amounts in s. A match glued to another
// dotted digit group (the "01.04" of 01.04.2024) is a date part, not money.
func amountLocs(s string) [][]int {
	var out [][]int
	for _, loc := range reAmount.FindAllStringIndex(s, -1) {
		start, end := loc[0], loc[1]
		if end+1 < len(s) && s[end] == '.' && isDigit(s[end+1]) {
			continue
		}
		if start >= 2 && s[start-1] == '.' && isDigit(s[start-2]) {
			continue
		}
		out = append(out, loc)
	}
	return out
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// FindAmounts returns every amount in line, left to right.
func FindAmounts(line string) []string {
	locs := amountLocs(line)
	out := make([]string, len(locs))
	for i, loc := range locs {
		out[i] = line[loc[0]:loc[1]]
	}
	return out
}

// HasDateAndAmount is the cheap pre-filter applied before field extraction.
func HasDateAndAmount(line string) bool {
	return reDate.MatchString(line) && len(amountLocs(line)) > 0
}

// ExtractFields splits one statement line into record fields. The rightmost
// amount is the running balance; the one before it is the transaction
// amount, filed as Debit when signed negative or the line says "debit".
func ExtractFields(line string) (entity.Record, bool) {
	var rec entity.Record
	work := line

	dateFound := false
	if loc := reDate.FindStringIndex(work); loc != nil {
		rec.Date = work[loc[0]:loc[1]]
		work = work[:loc[0]] + " " + work[loc[1]:]
		dateFound = true
	}

	locs := amountLocs(work)
	if !dateFound && len(locs) == 0 {
		return entity.Record{}, false
	}

	if n := len(locs); n >= 1 {
		rec.Balance = work[locs[n-1][0]:locs[n-1][1]]
		if n >= 2 {
			amt := work[locs[n-2][0]:locs[n-2][1]]
			if strings.Contains(amt, "-") || reDebit.MatchString(line) {
				rec.Debit = amt
			} else {
				rec.Credit = amt
			}
		}
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(work[prev:loc[0]])
		b.WriteByte(' ')
		prev = loc[1]
	}
	b.WriteString(work[prev:])
	rec.Description = strings.TrimSpace(reSpaces.ReplaceAllString(b.String(), " "))

	return rec, true
}
