package parsefields

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinesTagsPage(t *testing.T) {
	text := strings.Join([]string{
		"ACME BANK STATEMENT",
		"Date Description Debit Credit Balance",
		"",
		"15/04/2024 ACH DEBIT:TXV/G4951885 500.00 86040.65",
		"   16/04/2024 SALARY APRIL 2,500.00 88540.65   ",
		"Page 1 of 3",
	}, "\r\n")

	recs := NewParser(nil).ParseLines(text, 3)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, 3, r.Page)
	}
	assert.Equal(t, "15/04/2024", recs[0].Date)
	assert.Equal(t, "500.00", recs[0].Debit)
	assert.Equal(t, "2,500.00", recs[1].Credit)
	assert.Equal(t, "SALARY APRIL", recs[1].Description)
}

func TestParseLinesRequiresBothPatterns(t *testing.T) {
	p := NewParser(nil)
	assert.Empty(t, p.ParseLines("15/04/2024 no amount on this line", 1))
	assert.Empty(t, p.ParseLines("carried forward 1,000.00", 1))
	assert.Empty(t, p.ParseLines("just words\nmore words", 1))
}

func TestParseLinesOneRecordPerQualifyingLine(t *testing.T) {
	lines := []string{
		"01/02/2024 A 1.00 2.00",
		"02/02/2024 B 3.00",
		"3 Feb 2024 C -4.00 5.00",
	}
	recs := NewParser(nil).ParseLines(strings.Join(lines, "\n"), 7)
	assert.Len(t, recs, len(lines))
}

func TestParseLinesDropsPageBreakLines(t *testing.T) {
	text := "01/02/2024 A 1.00 2.00\n" + PageBreakMarker + "\n" +
		"02/02/2024 B 3.00 4.00" + PageBreakMarker + "\n03/02/2024 C 5.00 6.00"
	recs := NewParser(nil).ParseLines(text, 1)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Description)
	assert.Equal(t, "C", recs[1].Description)
}

func TestParseLinesIgnoresDottedDateParts(t *testing.T) {
	p := NewParser(nil)
	assert.Empty(t, p.ParseLines("Statement period 01.04.2024 to 30.04.2024", 2))
	assert.Empty(t, p.ParseLines("14.04.2024 OPENING BALANCE", 1))

	recs := p.ParseLines("15.04.2024 POS PURCHASE 500.00 86,040.65", 1)
	require.Len(t, recs, 1)
	assert.Equal(t, "15.04.2024", recs[0].Date)
	assert.Equal(t, "500.00", recs[0].Credit)
	assert.Equal(t, "86,040.65", recs[0].Balance)
	assert.Equal(t, "POS PURCHASE", recs[0].Description)
}
