// Package slides turns a PDF deck into per-page slide inputs.
//
// Only the text layer is read. Rasterizing pages is left to the caller,
// who may attach a PNG per slide before handing it to the pipeline.
package slides

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ppiankov/deckcheck/internal/model"
)

// FromFile reads the PDF at path
func FromFile(path string) ([]model.SlideInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open deck: %w", err)
	}
	defer func() { _ = f.Close() }()

	return FromReader(f)
}

// FromBytes reads a PDF held in memory
func FromBytes(data []byte) ([]model.SlideInput, error) {
	return FromReader(bytes.NewReader(data))
}

// FromReader returns one SlideInput per page, numbered from 1 with no gaps.
// Pages without a readable text layer are returned with empty text.
func FromReader(rs io.ReadSeeker) ([]model.SlideInput, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, fmt.Errorf("read pdf: document has no pages")
	}

	out := make([]model.SlideInput, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		out = append(out, model.SlideInput{
			SlideNumber: pageNr,
			Text:        pageText(ctx, pageNr),
		})
	}
	return out, nil
}

func pageText(ctx *pdfmodel.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return DecodeContent(data)
}
