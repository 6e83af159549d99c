package capture

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pageCount parses a PDF and returns its number of pages.
func pageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

// verifySinglePage rejects documents that spilled onto a second page or
// that pdfcpu cannot parse.
func verifySinglePage(data []byte) error {
	n, err := pageCount(data)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("capture: pdf has %d pages, want 1", n)
	}
	return nil
}
