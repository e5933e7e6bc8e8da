package parsefields

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

// Cell is one fragment of a table row. X is its left edge, zero when the
// source has no positions.
type Cell struct {
	Text string
	X    float64
}

// Table is a column layout taken from a statement's header row.
type Table struct {
	cols       []tableColumn
	positioned bool
}

type tableColumn struct {
	field constants.Field // unset for extra columns
	name  string
	x     float64
}

var amountFields = map[constants.Field]bool{
	constants.FieldDebit:   true,
	constants.FieldCredit:  true,
	constants.FieldAmount:  true,
	constants.FieldBalance: true,
}

// DetectTable reports whether row is a header row: it must name the date
// column and at least one amount column.
func DetectTable(row []Cell) (*Table, bool) {
	cells := nonEmpty(row)
	if len(cells) < 2 {
		return nil, false
	}
	names := make([]string, len(cells))
	for i, c := range cells {
		names[i] = c.Text
	}
	fields := constants.HeaderFields(names)

	hasDate, hasAmount := false, false
	t := &Table{cols: make([]tableColumn, len(cells)), positioned: true}
	for i, c := range cells {
		t.cols[i] = tableColumn{field: fields[i], name: strings.TrimSpace(c.Text), x: c.X}
		hasDate = hasDate || fields[i] == constants.FieldDate
		hasAmount = hasAmount || amountFields[fields[i]]
		if i > 0 && c.X <= cells[i-1].X {
			t.positioned = false
		}
	}
	if !hasDate || !hasAmount {
		return nil, false
	}
	return t, true
}

// Record maps a data row onto the layout. The row must carry a date in the
// date column and an amount in some amount column.
func (t *Table) Record(row []Cell) (entity.Record, bool) {
	values, ok := t.assign(nonEmpty(row))
	if !ok {
		return entity.Record{}, false
	}

	var rec entity.Record
	dated, priced := false, false
	for i, v := range values {
		if v == "" {
			continue
		}
		col := t.cols[i]
		switch {
		case col.field == constants.FieldDate:
			if _, ok := MatchDate(v); !ok {
				return entity.Record{}, false
			}
			dated = true
		case amountFields[col.field]:
			if len(amountLocs(v)) == 0 {
				continue
			}
			priced = true
		}
		if col.field != "" {
			rec.Set(string(col.field), v)
		} else if col.name != "" {
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[col.name] = v
		}
	}
	return rec, dated && priced
}

// assign distributes cells over columns: by nearest left edge when both the
// header and the row are positioned, by index when the counts match.
func (t *Table) assign(cells []Cell) ([]string, bool) {
	if len(cells) == 0 {
		return nil, false
	}
	values := make([]string, len(t.cols))
	if t.positioned && hasPositions(cells) {
		for _, c := range cells {
			i := t.nearest(c.X)
			values[i] = strings.TrimSpace(values[i] + " " + c.Text)
		}
		return values, true
	}
	if len(cells) != len(t.cols) {
		return nil, false
	}
	for i, c := range cells {
		values[i] = c.Text
	}
	return values, true
}

func (t *Table) nearest(x float64) int {
	best, dist := 0, math.Inf(1)
	for i, col := range t.cols {
		if d := math.Abs(col.x - x); d < dist {
			best, dist = i, d
		}
	}
	return best
}

// continuation returns the text of a row that only fills the description
// column, as wrapped narrations do.
func (t *Table) continuation(row []Cell) (string, bool) {
	values, ok := t.assign(nonEmpty(row))
	if !ok {
		return "", false
	}
	text := ""
	for i, v := range values {
		if v == "" {
			continue
		}
		if t.cols[i].field != constants.FieldDescription {
			return "", false
		}
		text = v
	}
	return text, text != ""
}

// ParseTable maps rows through the header layout. A header row found on the
// page replaces t; the layout in effect at the end is returned so it can
// carry over to the next page.
func (p *Parser) ParseTable(rows [][]Cell, page int, t *Table) ([]entity.Record, *Table) {
	var out []entity.Record
	for _, row := range rows {
		if next, ok := DetectTable(row); ok {
			t = next
			continue
		}
		if t == nil {
			continue
		}
		if rec, ok := t.Record(row); ok {
			rec.Page = page
			out = append(out, rec)
			continue
		}
		if text, ok := t.continuation(row); ok && len(out) > 0 {
			last := &out[len(out)-1]
			last.Description = strings.TrimSpace(last.Description + " " + text)
		}
	}
	return out, t
}

func nonEmpty(row []Cell) []Cell {
	out := make([]Cell, 0, len(row))
	for _, c := range row {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text != "" {
			out = append(out, c)
		}
	}
	return out
}

func hasPositions(cells []Cell) bool {
	for _, c := range cells {
		if c.X != 0 {
			return true
		}
	}
	return false
}
