package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/document"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
)

// rows turns each line into word items, the last one flagged as row end.
func rows(lines ...string) []document.TextItem {
	var items []document.TextItem
	for _, l := range lines {
		words := strings.Fields(l)
		for i, w := range words {
			items = append(items, document.TextItem{Str: w, EOL: i == len(words)-1})
		}
	}
	return items
}

type fakeDoc struct {
	mu       sync.Mutex
	pages    [][]document.TextItem
	plain    map[int]string
	raster   func(ctx context.Context, page int) error
	read     []int
	rastered []int
	closed   int
}

func (d *fakeDoc) NumPages() int { return len(d.pages) }

func (d *fakeDoc) PageText(_ context.Context, page int) ([]document.TextItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.read = append(d.read, page)
	return d.pages[page-1], nil
}

func (d *fakeDoc) PlainText(_ context.Context, page int) (string, error) {
	if s, ok := d.plain[page]; ok {
		return s, nil
	}
	return "", errors.New("no plain text")
}

// RasterizePage encodes the page number as the image width.
func (d *fakeDoc) RasterizePage(ctx context.Context, page int, _ float64) (image.Image, error) {
	d.mu.Lock()
	d.rastered = append(d.rastered, page)
	d.mu.Unlock()
	if d.raster != nil {
		if err := d.raster(ctx, page); err != nil {
			return nil, err
		}
	}
	return image.NewGray(image.Rect(0, 0, page, 1)), nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// textOnly hides every optional capability of the wrapped document.
type textOnly struct{ document.Document }

type loaderFunc func(ctx context.Context, data []byte) (document.Document, error)

func (f loaderFunc) Load(ctx context.Context, data []byte) (document.Document, error) {
	return f(ctx, data)
}

func staticLoader(doc document.Document) document.Loader {
	return loaderFunc(func(context.Context, []byte) (document.Document, error) { return doc, nil })
}

type fakeEngine struct {
	texts       map[int]string
	fail        map[int]bool
	onRecognize func(page int)
	recognized  []int
	closed      int
}

func (e *fakeEngine) Recognize(_ context.Context, img image.Image) (string, error) {
	page := img.Bounds().Dx()
	e.recognized = append(e.recognized, page)
	if e.onRecognize != nil {
		e.onRecognize(page)
	}
	if e.fail[page] {
		return "", fmt.Errorf("tesseract crashed on page %d", page)
	}
	return e.texts[page], nil
}

func (e *fakeEngine) Close() error {
	e.closed++
	return nil
}

type engineCounter struct {
	engine  *fakeEngine
	created int
	langs   []string
}

func (c *engineCounter) NewEngine(_ context.Context, lang string) (ocr.Engine, error) {
	c.created++
	c.langs = append(c.langs, lang)
	return c.engine, nil
}

type sink struct {
	progress []int
	statuses []string
	data     [][]entity.Record
	errs     []string
}

func (s *sink) handler() Handler {
	return Handler{
		OnProgress: func(p int, status string) {
			s.progress = append(s.progress, p)
			s.statuses = append(s.statuses, status)
		},
		OnData:  func(r []entity.Record) { s.data = append(s.data, r) },
		OnError: func(msg string) { s.errs = append(s.errs, msg) },
	}
}

// steppingClock advances one second per reading so every progress event
// clears the throttle.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func frozenClock() func() time.Time {
	t := time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func descriptions(recs []entity.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Description
	}
	return out
}

func scannedDoc(n int) *fakeDoc {
	return &fakeDoc{pages: make([][]document.TextItem, n)}
}

func TestRunTextLayer(t *testing.T) {
	doc := &fakeDoc{pages: [][]document.TextItem{
		rows(
			"16/04/2024 ATM WITHDRAWAL DEBIT 200.00 800.00",
			"14/04/2024 SALARY CREDIT ACME LTD 1,000.00 1,000.00",
			"Opening balance brought forward from the previous statement period",
		),
		rows(
			"14/04/2024 SALARY CREDIT ACME LTD 1,000.00 1,000.00",
			"15/04/2024 CARD PAYMENT GROCER 50.00 950.00",
		),
	}}
	engines := &engineCounter{engine: &fakeEngine{}}
	c := NewController(Config{}, staticLoader(doc), engines, nil, WithClock(steppingClock()))
	var s sink

	recs, err := c.Run(context.Background(), []byte("%PDF"), Options{UseOCR: true}, s.handler())
	require.NoError(t, err)

	require.Len(t, recs, 3)
	assert.Equal(t, []string{"SALARY CREDIT ACME LTD", "CARD PAYMENT GROCER", "ATM WITHDRAWAL DEBIT"}, descriptions(recs))
	assert.Equal(t, "1,000.00", recs[0].Credit)
	assert.Equal(t, 1, recs[0].Page)
	assert.Equal(t, 2, recs[1].Page)
	assert.Equal(t, "200.00", recs[2].Debit)
	assert.Equal(t, "800.00", recs[2].Balance)

	require.Len(t, s.data, 1)
	assert.Equal(t, recs, s.data[0])
	assert.Empty(t, s.errs)
	assert.Equal(t, 0, engines.created)
	assert.Equal(t, StateCompleted, c.State())
	assert.Equal(t, 1, doc.closed)

	require.NotEmpty(t, s.progress)
	assert.Equal(t, 0, s.progress[0])
	assert.Equal(t, 100, s.progress[len(s.progress)-1])
	assert.IsNonDecreasing(t, s.progress)
	assert.Contains(t, s.progress, 50)
}

// tableRow lays cells out at fixed column offsets.
func tableRow(cells ...string) []document.TextItem {
	var items []document.TextItem
	for i, c := range cells {
		if c != "" {
			items = append(items, document.TextItem{Str: c, X: float64(40 + 80*i)})
		}
	}
	items[len(items)-1].EOL = true
	return items
}

func TestRunTextLayerTable(t *testing.T) {
	page1 := append(tableRow("Value Date", "Particulars", "Dr", "Cr", "Balance"),
		tableRow("15/04/2024", "POS PURCHASE", "500.00", "", "86,040.65")...)
	page2 := tableRow("16/04/2024", "TRANSFER IN", "", "1,000.00", "87,040.65")
	doc := &fakeDoc{pages: [][]document.TextItem{page1, page2}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{}, nil, WithClock(steppingClock()))
	var s sink

	recs, err := c.Run(context.Background(), nil, Options{}, s.handler())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "500.00", recs[0].Debit)
	assert.Equal(t, "POS PURCHASE", recs[0].Description)
	assert.Equal(t, "1,000.00", recs[1].Credit)
	assert.Empty(t, recs[1].Debit)
	assert.Equal(t, 2, recs[1].Page)
}

func TestRunThrottlesProgress(t *testing.T) {
	doc := &fakeDoc{pages: [][]document.TextItem{
		rows(strings.Repeat("header ", 20), "15/04/2024 CARD PAYMENT 50.00 950.00"),
		rows("16/04/2024 FEE 5.00 945.00"),
	}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{}, nil, WithClock(frozenClock()))
	var s sink

	_, err := c.Run(context.Background(), nil, Options{}, s.handler())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 100}, s.progress)
}

func TestRunWholeDocumentFallback(t *testing.T) {
	doc := &fakeDoc{
		pages: [][]document.TextItem{
			rows("15/04/2024", "POS GROCER 50.00 950.00"),
		},
		plain: map[int]string{1: "15/04/2024 POS GROCER 50.00 950.00\n"},
	}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{}, nil)
	var s sink

	recs, err := c.Run(context.Background(), nil, Options{}, s.handler())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "15/04/2024", recs[0].Date)
	assert.Equal(t, "POS GROCER", recs[0].Description)
	assert.Equal(t, 1, recs[0].Page)
	assert.Len(t, s.data, 1)
}

func TestRunExtractionEmpty(t *testing.T) {
	doc := &fakeDoc{pages: [][]document.TextItem{
		rows("Account summary for April", "No activity this period"),
		rows("Page 2 of 2"),
	}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{}, nil)
	var s sink

	recs, err := c.Run(context.Background(), nil, Options{}, s.handler())
	require.ErrorIs(t, err, common.ErrExtractionEmpty)
	assert.Nil(t, recs)
	assert.Empty(t, s.data)
	require.Len(t, s.errs, 1)
	assert.Equal(t, common.UserMessage(common.ErrExtractionEmpty), s.errs[0])
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 1, doc.closed)
}

func TestRunScannedWithoutOCRUsesTextLayer(t *testing.T) {
	doc := &fakeDoc{pages: [][]document.TextItem{rows("15/04/2024 FEE 5.00 995.00")}}
	engines := &engineCounter{engine: &fakeEngine{}}
	c := NewController(Config{}, staticLoader(doc), engines, nil)

	recs, err := c.Run(context.Background(), nil, Options{UseOCR: false}, Handler{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "5.00", recs[0].Credit)
	assert.Equal(t, 0, engines.created)
	assert.Empty(t, doc.rastered)
}

func TestRunOCR(t *testing.T) {
	doc := scannedDoc(3)
	eng := &fakeEngine{texts: map[int]string{
		1: "STATEMENT OF ACCOUNT\n16/04/2024 TRANSFER 5OO.00 1,500.00\n",
		2: "",
		3: "15/04/2024 CARD PAYMENT 50.00 1,000.00\n",
	}}
	engines := &engineCounter{engine: eng}
	c := NewController(Config{}, staticLoader(doc), engines, nil, WithClock(steppingClock()))
	var s sink

	recs, err := c.Run(context.Background(), nil, Options{UseOCR: true, Language: "eng"}, s.handler())
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, "15/04/2024", recs[0].Date)
	assert.Equal(t, 3, recs[0].Page)
	assert.Equal(t, "500.00", recs[1].Credit)
	assert.Equal(t, 1, recs[1].Page)

	assert.Equal(t, []int{1, 2, 3}, doc.rastered)
	assert.Equal(t, []int{1, 2, 3}, eng.recognized)
	assert.Equal(t, 1, engines.created)
	assert.Equal(t, []string{"eng"}, engines.langs)
	assert.Equal(t, 1, eng.closed)
	assert.IsNonDecreasing(t, s.progress)
	assert.Contains(t, s.progress, 45)
	assert.Contains(t, s.progress, 80)
	assert.Contains(t, s.progress, 95)
}

func TestRunOCRCapsPages(t *testing.T) {
	doc := scannedDoc(14)
	eng := &fakeEngine{texts: map[int]string{1: "15/04/2024 FEE 5.00 995.00"}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{engine: eng}, nil)

	_, err := c.Run(context.Background(), nil, Options{UseOCR: true}, Handler{})
	require.NoError(t, err)
	assert.Len(t, doc.rastered, 10)
	assert.Len(t, eng.recognized, 10)
}

func TestRunOCRRecoversFromPageFailure(t *testing.T) {
	doc := scannedDoc(3)
	eng := &fakeEngine{
		texts: map[int]string{
			1: "15/04/2024 FEE 5.00 995.00",
			2: "16/04/2024 FEE 6.00 989.00",
			3: "17/04/2024 FEE 7.00 982.00",
		},
		fail: map[int]bool{2: true},
	}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{engine: eng}, nil)

	recs, err := c.Run(context.Background(), nil, Options{UseOCR: true}, Handler{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []int{1, 3}, []int{recs[0].Page, recs[1].Page})
	assert.Equal(t, 1, eng.closed)
}

func TestRunOCRSkipsPagesThatFailToRender(t *testing.T) {
	doc := scannedDoc(2)
	doc.raster = func(_ context.Context, page int) error {
		if page == 1 {
			return errors.New("bad page")
		}
		return nil
	}
	eng := &fakeEngine{texts: map[int]string{2: "15/04/2024 FEE 5.00 995.00"}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{engine: eng}, nil)

	recs, err := c.Run(context.Background(), nil, Options{UseOCR: true}, Handler{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []int{2}, eng.recognized)
}

func TestRunOCRNotRasterizable(t *testing.T) {
	doc := scannedDoc(1)
	c := NewController(Config{}, staticLoader(textOnly{doc}), &engineCounter{engine: &fakeEngine{}}, nil)
	var s sink

	_, err := c.Run(context.Background(), nil, Options{UseOCR: true}, s.handler())
	require.Error(t, err)
	assert.Len(t, s.errs, 1)
	assert.Equal(t, StateFailed, c.State())
}

func TestCancelDuringRasterization(t *testing.T) {
	doc := scannedDoc(5)
	engines := &engineCounter{engine: &fakeEngine{}}
	c := NewController(Config{}, staticLoader(doc), engines, nil)
	doc.raster = func(_ context.Context, page int) error {
		if page == 3 {
			c.Cancel()
		}
		return nil
	}
	var s sink

	recs, err := c.Run(context.Background(), nil, Options{UseOCR: true}, s.handler())
	require.ErrorIs(t, err, common.ErrCancelled)
	assert.Nil(t, recs)
	assert.Equal(t, []int{1, 2, 3}, doc.rastered)
	assert.Equal(t, 0, engines.created)
	assert.Empty(t, s.data)
	assert.Empty(t, s.errs)
	assert.Equal(t, StateCancelled, c.State())
	assert.Equal(t, 1, doc.closed)
}

func TestCancelDuringRecognition(t *testing.T) {
	doc := scannedDoc(4)
	eng := &fakeEngine{texts: map[int]string{1: "15/04/2024 FEE 5.00 995.00"}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{engine: eng}, nil)
	eng.onRecognize = func(page int) {
		if page == 2 {
			c.Cancel()
		}
	}
	var s sink

	_, err := c.Run(context.Background(), nil, Options{UseOCR: true}, s.handler())
	require.ErrorIs(t, err, common.ErrCancelled)
	assert.Equal(t, []int{1, 2}, eng.recognized)
	assert.Equal(t, 1, eng.closed)
	assert.Empty(t, s.data)
	assert.Empty(t, s.errs)
}

func TestProgressSuppressedAfterCancel(t *testing.T) {
	doc := scannedDoc(3)
	c := NewController(Config{}, staticLoader(doc), &engineCounter{engine: &fakeEngine{}}, nil, WithClock(steppingClock()))
	var s sink
	doc.raster = func(_ context.Context, page int) error {
		if page == 1 {
			c.Cancel()
		}
		return nil
	}

	_, err := c.Run(context.Background(), nil, Options{UseOCR: true}, s.handler())
	require.ErrorIs(t, err, common.ErrCancelled)
	assert.NotContains(t, s.progress, 100)
	for _, p := range s.progress {
		assert.LessOrEqual(t, p, 10)
	}
}

func TestCancelFromFinalProgressWithholdsData(t *testing.T) {
	doc := &fakeDoc{pages: [][]document.TextItem{rows("15/04/2024 CARD PAYMENT 50.00 950.00")}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{}, nil, WithClock(steppingClock()))
	var s sink
	h := s.handler()
	onProgress := h.OnProgress
	h.OnProgress = func(p int, status string) {
		onProgress(p, status)
		if p == 100 {
			c.Cancel()
		}
	}

	recs, err := c.Run(context.Background(), nil, Options{}, h)
	require.ErrorIs(t, err, common.ErrCancelled)
	assert.Nil(t, recs)
	assert.Contains(t, s.progress, 100)
	assert.Empty(t, s.data)
	assert.Empty(t, s.errs)
	assert.Equal(t, StateCancelled, c.State())
}

func TestRunStallTimeout(t *testing.T) {
	doc := scannedDoc(2)
	doc.raster = func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}
	engines := &engineCounter{engine: &fakeEngine{}}
	c := NewController(Config{StageTimeout: 50 * time.Millisecond}, staticLoader(doc), engines, nil)
	var s sink

	_, err := c.Run(context.Background(), nil, Options{UseOCR: true}, s.handler())
	require.ErrorIs(t, err, common.ErrTimeout)
	require.Len(t, s.errs, 1)
	assert.Equal(t, common.UserMessage(common.ErrTimeout), s.errs[0])
	assert.Empty(t, s.data)
	assert.Equal(t, 0, engines.created)
	assert.Equal(t, StateFailed, c.State())
}

func TestRunParentContext(t *testing.T) {
	newDoc := func() *fakeDoc { return &fakeDoc{pages: [][]document.TextItem{rows("15/04/2024 FEE 5.00 995.00")}} }

	t.Run("timeout cause", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		cancel(common.ErrTimeout)
		c := NewController(Config{}, staticLoader(newDoc()), &engineCounter{}, nil)
		var s sink

		_, err := c.Run(ctx, nil, Options{}, s.handler())
		require.ErrorIs(t, err, common.ErrTimeout)
		assert.Len(t, s.errs, 1)
	})

	t.Run("plain cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := NewController(Config{}, staticLoader(newDoc()), &engineCounter{}, nil)
		var s sink

		_, err := c.Run(ctx, nil, Options{}, s.handler())
		require.ErrorIs(t, err, common.ErrCancelled)
		assert.Empty(t, s.errs)
		assert.Empty(t, s.data)
		assert.Equal(t, StateCancelled, c.State())
	})
}

func TestRunLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		loadErr error
		target  error
	}{
		{"password", common.NewAppError(common.CodePasswordProtected, "document is encrypted", common.ErrPasswordProtected), common.ErrPasswordProtected},
		{"corrupt", common.DocumentLoadError(errors.New("malformed xref table")), common.ErrDocumentLoad},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loader := loaderFunc(func(context.Context, []byte) (document.Document, error) { return nil, tc.loadErr })
			c := NewController(Config{}, loader, &engineCounter{}, nil)
			var s sink

			_, err := c.Run(context.Background(), []byte("junk"), Options{}, s.handler())
			require.ErrorIs(t, err, tc.target)
			require.Len(t, s.errs, 1)
			assert.Equal(t, common.UserMessage(tc.loadErr), s.errs[0])
			assert.Empty(t, s.data)
		})
	}
}

func TestRunRejectsUnknownLanguage(t *testing.T) {
	c := NewController(Config{}, staticLoader(scannedDoc(1)), &engineCounter{}, nil)
	var s sink

	_, err := c.Run(context.Background(), nil, Options{UseOCR: true, Language: "klingon"}, s.handler())
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Len(t, s.errs, 1)
}

func TestRunTextLayerCapsPages(t *testing.T) {
	pages := make([][]document.TextItem, 25)
	for i := range pages {
		p := i + 1
		pages[i] = rows(
			strings.Repeat("statement ", 12),
			fmt.Sprintf("%02d/04/2024 TRANSFER %d.00 %d.00", p, p, 1000+p),
		)
	}
	doc := &fakeDoc{pages: pages}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{}, nil)

	recs, err := c.Run(context.Background(), nil, Options{}, Handler{})
	require.NoError(t, err)
	assert.Len(t, recs, 20)
	maxRead := 0
	for _, p := range doc.read {
		maxRead = max(maxRead, p)
	}
	assert.Equal(t, 20, maxRead)
	assert.Equal(t, "20/04/2024", recs[19].Date)
}

func TestControllerSingleUse(t *testing.T) {
	doc := &fakeDoc{pages: [][]document.TextItem{rows("15/04/2024 FEE 5.00 995.00")}}
	c := NewController(Config{}, staticLoader(doc), &engineCounter{}, nil)

	_, err := c.Run(context.Background(), nil, Options{}, Handler{})
	require.NoError(t, err)
	_, err = c.Run(context.Background(), nil, Options{}, Handler{})
	assert.ErrorIs(t, err, ErrControllerUsed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "extracting_ocr", StateExtractingOCR.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePostProcessing.Terminal())
}
