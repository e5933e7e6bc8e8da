package constants

import (
	"strings"
)

// Field names a transaction record column.
type Field string

const (
	FieldDate        Field = "Date"
	FieldDescription Field = "Description"
	FieldDebit       Field = "Debit"
	FieldCredit      Field = "Credit"
	FieldAmount      Field = "Amount"
	FieldBalance     Field = "Balance"
	FieldPage        Field = "Page"
)

// allFields is the canonical display order.
var allFields = []Field{
	FieldDate,
	FieldDescription,
	FieldDebit,
	FieldCredit,
	FieldAmount,
	FieldBalance,
	FieldPage,
}

func Fields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

// header synonyms seen on statement exports
var synonyms = map[string]Field{
	"date":               FieldDate,
	"transaction date":   FieldDate,
	"trans date":         FieldDate,
	"posted date":        FieldDate,
	"value date":         FieldDate,
	"txn date":           FieldDate,
	"description":        FieldDescription,
	"transaction":        FieldDescription,
	"details":            FieldDescription,
	"particulars":        FieldDescription,
	"narration":          FieldDescription,
	"memo":               FieldDescription,
	"remarks":            FieldDescription,
	"debit":              FieldDebit,
	"withdrawal":         FieldDebit,
	"withdrawals":        FieldDebit,
	"dr":                 FieldDebit,
	"money out":          FieldDebit,
	"credit":             FieldCredit,
	"deposit":            FieldCredit,
	"deposits":           FieldCredit,
	"cr":                 FieldCredit,
	"money in":           FieldCredit,
	"amount":             FieldAmount,
	"transaction amount": FieldAmount,
	"balance":            FieldBalance,
	"closing balance":    FieldBalance,
	"running balance":    FieldBalance,
	"page":               FieldPage,
}

// CanonicalField maps a column header to a recognized field.
func CanonicalField(header string) (Field, bool) {
	normalized := strings.ToLower(strings.TrimSpace(header))
	normalized = strings.TrimSuffix(normalized, ".")
	normalized = strings.Join(strings.Fields(normalized), " ")
	if normalized == "" {
		return "", false
	}

	if f, ok := synonyms[normalized]; ok {
		return f, true
	}
	return "", false
}

// HeaderFields resolves a header row left to right. The first header naming a
// field claims it; unrecognized headers and later synonyms map to "".
func HeaderFields(headers []string) []Field {
	out := make([]Field, len(headers))
	taken := make(map[Field]bool, len(headers))
	for i, h := range headers {
		if f, ok := CanonicalField(h); ok && !taken[f] {
			taken[f] = true
			out[i] = f
		}
	}
	return out
}
