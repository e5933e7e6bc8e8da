package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/document"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline/parsefields"
)

const (
	rasterBandStart    = 25
	recognizeBandStart = 45
	parseBandStart     = 80
	parseBandEnd       = 95
)

var errNotRasterizable = errors.New("document cannot be rasterized")

// ocrStage rasterizes pages, recognizes them with one engine instance and
// parses the recognized text.
type ocrStage struct {
	maxPages   int
	scale      float64
	preprocess ocr.Preprocess
	engines    ocr.EngineFactory
	parser     *parsefields.Parser
}

func (s *ocrStage) extract(ctx context.Context, doc document.Document, lang string, st *runState) ([]entity.Record, error) {
	r, ok := doc.(document.Rasterizer)
	if !ok {
		return nil, errNotRasterizable
	}
	n := min(doc.NumPages(), s.maxPages)
	st.logger.Info("ocr extraction started", "pages", doc.NumPages(), "processing", n, "lang", lang)
	if n == 0 {
		return nil, common.ErrExtractionEmpty
	}

	images, err := s.rasterize(ctx, r, n, st)
	if err != nil {
		return nil, err
	}
	texts, err := s.recognize(ctx, images, lang, st)
	if err != nil {
		return nil, err
	}

	var recs []entity.Record
	for i, text := range texts {
		if err := st.checkpoint(ctx); err != nil {
			return nil, err
		}
		page := s.parser.ParseLines(ocr.Normalize(text), i+1)
		st.logger.Debug("page parsed", "page", i+1, "chars", len(text), "records", len(page))
		recs = append(recs, page...)
		st.report(parseBandStart+(parseBandEnd-parseBandStart)*(i+1)/n, fmt.Sprintf("Parsing page %d of %d", i+1, n))
	}
	if len(recs) == 0 {
		return nil, common.ErrExtractionEmpty
	}
	return recs, nil
}

func (s *ocrStage) rasterize(ctx context.Context, r document.Rasterizer, n int, st *runState) ([]image.Image, error) {
	backend := string(constants.BackendOCR)
	images := make([]image.Image, n)
	for i := 0; i < n; i++ {
		if err := st.checkpoint(ctx); err != nil {
			return nil, err
		}
		img, err := r.RasterizePage(ctx, i+1, s.scale)
		if err != nil {
			if cerr := st.checkpoint(ctx); cerr != nil {
				return nil, cerr
			}
			st.logger.Warn("page rasterization failed", "page", i+1, "error", err)
			st.metrics.PageFailed(backend, "rasterize")
		} else {
			images[i] = img
		}
		st.report(rasterBandStart+(recognizeBandStart-rasterBandStart)*(i+1)/n, fmt.Sprintf("Rendering page %d of %d", i+1, n))
	}
	return images, nil
}

// recognize owns the engine for its whole lifetime; it is closed on every
// return path.
func (s *ocrStage) recognize(ctx context.Context, images []image.Image, lang string, st *runState) ([]string, error) {
	backend := string(constants.BackendOCR)
	if err := st.checkpoint(ctx); err != nil {
		return nil, err
	}
	eng, err := s.engines.NewEngine(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("start ocr engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			st.logger.Warn("ocr engine close failed", "error", err)
		}
	}()

	n := len(images)
	texts := make([]string, n)
	for i, img := range images {
		if err := st.checkpoint(ctx); err != nil {
			return nil, err
		}
		if img != nil {
			if s.preprocess != (ocr.Preprocess{}) {
				img = s.preprocess.Apply(img)
			}
			text, rerr := eng.Recognize(ctx, img)
			if err := st.checkpoint(ctx); err != nil {
				return nil, err
			}
			if rerr != nil {
				st.logger.Warn("page recognition failed", "page", i+1, "error", rerr)
				st.metrics.PageFailed(backend, "recognize")
			} else {
				texts[i] = text
				if cr, ok := eng.(ocr.ConfidenceReporter); ok {
					st.metrics.ObserveOCRConfidence(cr.LastConfidence())
					st.logger.Debug("page recognized", "page", i+1, "chars", len(text), "confidence", cr.LastConfidence())
				}
			}
		}
		st.metrics.PageProcessed(backend)
		st.report(recognizeBandStart+(parseBandStart-recognizeBandStart)*(i+1)/n, fmt.Sprintf("Recognizing page %d of %d", i+1, n))
	}
	return texts, nil
}
