package entity

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/joseph-ayodele/statement-extractor/constants"
)

// Record is one transaction row. Empty strings mean the field is absent.
type Record struct {
	Date        string
	Description string
	Debit       string
	Credit      string
	Amount      string
	Balance     string
	Page        int
	Extra       map[string]string
}

// Get returns the value stored under name, recognized or overflow.
func (r Record) Get(name string) string {
	switch constants.Field(name) {
	case constants.FieldDate:
		return r.Date
	case constants.FieldDescription:
		return r.Description
	case constants.FieldDebit:
		return r.Debit
	case constants.FieldCredit:
		return r.Credit
	case constants.FieldAmount:
		return r.Amount
	case constants.FieldBalance:
		return r.Balance
	case constants.FieldPage:
		if r.Page == 0 {
			return ""
		}
		return strconv.Itoa(r.Page)
	}
	return r.Extra[name]
}

// Set stores value under name. Unknown names land in Extra.
func (r *Record) Set(name, value string) {
	switch constants.Field(name) {
	case constants.FieldDate:
		r.Date = value
	case constants.FieldDescription:
		r.Description = value
	case constants.FieldDebit:
		r.Debit = value
	case constants.FieldCredit:
		r.Credit = value
	case constants.FieldAmount:
		r.Amount = value
	case constants.FieldBalance:
		r.Balance = value
	case constants.FieldPage:
		r.Page, _ = strconv.Atoi(value)
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[name] = value
	}
}

// PrimaryAmount is the first non-empty of Amount, Debit, Credit.
func (r Record) PrimaryAmount() string {
	switch {
	case r.Amount != "":
		return r.Amount
	case r.Debit != "":
		return r.Debit
	default:
		return r.Credit
	}
}

// Map flattens the record, overflow keys included, dropping empty values.
func (r Record) Map() map[string]string {
	out := make(map[string]string, 8+len(r.Extra))
	for k, v := range r.Extra {
		if v != "" {
			out[k] = v
		}
	}
	for _, f := range constants.Fields() {
		if v := r.Get(string(f)); v != "" {
			out[string(f)] = v
		}
	}
	return out
}

// MarshalJSON writes a flat object; Page stays numeric.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Extra)+7)
	for k, v := range r.Map() {
		m[k] = v
	}
	if r.Page != 0 {
		m[string(constants.FieldPage)] = r.Page
	}
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = Record{}
	for k, v := range m {
		switch val := v.(type) {
		case string:
			r.Set(k, val)
		case float64:
			r.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
		}
	}
	return nil
}

// Columns returns the union of populated fields across records:
// recognized fields in canonical order, then overflow keys sorted.
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		for k, v := range r.Map() {
			if v != "" {
				seen[k] = true
			}
		}
	}

	var cols []string
	for _, f := range constants.AsStringSlice() {
		if seen[f] {
			cols = append(cols, f)
			delete(seen, f)
		}
	}
	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}
