package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

func TestDedupeKeepsFirst(t *testing.T) {
	in := []entity.Record{
		{Date: "01/02/2024", Debit: "10.00", Description: "COFFEE SHOP LONDON", Page: 1},
		{Date: "01/02/2024", Debit: "10.00", Description: "COFFEE SHOP PARIS", Page: 2},
		{Date: "01/02/2024", Credit: "10.00", Description: "COFFEE SHOP LONDON", Page: 3},
		{Date: "01/02/2024", Debit: "11.00", Description: "COFFEE SHOP LONDON", Page: 4},
	}
	// records 2 and 3 share date, primary amount and the ten-char prefix
	out := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Page)
	assert.Equal(t, 4, out[1].Page)
}

func TestDedupeKeyPrefersAmount(t *testing.T) {
	a := entity.Record{Date: "d", Amount: "5.00", Debit: "1.00", Description: "x"}
	b := entity.Record{Date: "d", Amount: "5.00", Credit: "9.00", Description: "x"}
	assert.Equal(t, DedupeKey(a), DedupeKey(b))
}

func TestSortByDate(t *testing.T) {
	in := []entity.Record{
		{Date: "03/01/2024", Description: "c"},
		{Date: "01/01/2024", Description: "a"},
		{Date: "01/01/2024", Description: "a2"},
		{Date: "02/01/2024", Description: "b"},
	}
	out := SortByDate(in)
	got := make([]string, len(out))
	for i, r := range out {
		got[i] = r.Description
	}
	assert.Equal(t, []string{"a", "a2", "b", "c"}, got)
	assert.Equal(t, "c", in[0].Description, "input must not be reordered in place")
}

func TestSortByDateKeepsUnparseableInPlace(t *testing.T) {
	in := []entity.Record{
		{Date: "05/01/2024", Description: "e"},
		{Date: "", Description: "u1"},
		{Date: "01/01/2024", Description: "a"},
		{Date: "garbage", Description: "u2"},
		{Date: "03/01/2024", Description: "c"},
	}
	out := SortByDate(in)
	got := make([]string, len(out))
	for i, r := range out {
		got[i] = r.Description
	}
	assert.Equal(t, []string{"a", "u1", "c", "u2", "e"}, got)
}

func TestProcessIsIdempotent(t *testing.T) {
	in := []entity.Record{
		{Date: "02/02/2024", Debit: "1.00", Description: "B"},
		{Date: "01/02/2024", Credit: "2.00", Description: "A"},
		{Date: "02/02/2024", Debit: "1.00", Description: "B"},
		{Date: "n/a", Description: "note"},
	}
	once := Process(in)
	twice := Process(once)
	assert.Equal(t, once, twice)
	assert.Len(t, once, 3)
}
