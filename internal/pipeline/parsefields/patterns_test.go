package parsefields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDate(t *testing.T) {
	cases := []struct {
		line string
		want string
		ok   bool
	}{
		{"15/04/2024 ACH DEBIT", "15/04/2024", true},
		{"posted 1-2-24 fee", "1-2-24", true},
		{"03.11.2023 and 04.11.2023", "03.11.2023", true},
		{"12 Mar 2024 POS purchase", "12 Mar 2024", true},
		{"7 september 23 refund", "7 september 23", true},
		{"Opening balance", "", false},
		{"Invoice 2024", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			got, ok := MatchDate(tc.line)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFindAmounts(t *testing.T) {
	assert.Equal(t, []string{"500.00", "86040.65"}, FindAmounts("ACH 500.00 86040.65"))
	assert.Equal(t, []string{"1,234,567.89"}, FindAmounts("total 1,234,567.89"))
	assert.Equal(t, []string{"-42.10", "$ 9.99", "€1,000.00"}, FindAmounts("x -42.10 y $ 9.99 z €1,000.00"))
	assert.Empty(t, FindAmounts("no money 12 or 3.5 here"))
	assert.Empty(t, FindAmounts("from 01.04.2024 to 30.04.2024"))
	assert.Equal(t, []string{"12.50"}, FindAmounts("on 15.04.2024 paid 12.50"))
}

func TestExtractFieldsDebitLine(t *testing.T) {
	rec, ok := ExtractFields("15/04/2024 ACH DEBIT:TXV/G4951885 500.00 86040.65")
	require.True(t, ok)
	assert.Equal(t, "15/04/2024", rec.Date)
	assert.Equal(t, "500.00", rec.Debit)
	assert.Empty(t, rec.Credit)
	assert.Equal(t, "86040.65", rec.Balance)
	assert.Equal(t, "ACH DEBIT:TXV/G4951885", rec.Description)
}

func TestExtractFieldsCreditAndSign(t *testing.T) {
	rec, ok := ExtractFields("14/04/2024 CR CARD PYMT 50,000.00 86,540.65")
	require.True(t, ok)
	assert.Equal(t, "50,000.00", rec.Credit)
	assert.Equal(t, "86,540.65", rec.Balance)
	assert.Equal(t, "CR CARD PYMT", rec.Description)

	rec, ok = ExtractFields("02 Jan 2024 Coffee shop -4.50 120.00")
	require.True(t, ok)
	assert.Equal(t, "02 Jan 2024", rec.Date)
	assert.Equal(t, "-4.50", rec.Debit)
	assert.Equal(t, "Coffee shop", rec.Description)
}

func TestExtractFieldsSingleAmountIsBalance(t *testing.T) {
	rec, ok := ExtractFields("01/01/2024 Opening balance 1,000.00")
	require.True(t, ok)
	assert.Equal(t, "1,000.00", rec.Balance)
	assert.Empty(t, rec.Debit)
	assert.Empty(t, rec.Credit)
	assert.Equal(t, "Opening balance", rec.Description)
}

func TestExtractFieldsNothingMatches(t *testing.T) {
	_, ok := ExtractFields("Statement of account")
	assert.False(t, ok)
}
