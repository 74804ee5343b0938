package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFOptions controls header/footer cropping before text extraction.
// Margins are in points (1 pt = 1/72 inch); zero disables cropping.
type PDFOptions struct {
	CropTop    float64
	CropBottom float64
}

func (o PDFOptions) crops() bool {
	return o.CropTop > 0 || o.CropBottom > 0
}

// ReadPDF validates the file, optionally crops page margins, and returns the
// plain text of every page together with the page count.
func ReadPDF(path string, opts PDFOptions) (string, int, error) {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return "", 0, fmt.Errorf("invalid pdf %s: %w", filepath.Base(path), err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("count pages: %w", err)
	}

	src := path
	if opts.crops() {
		tmp, err := os.CreateTemp("", "crop-*.pdf")
		if err != nil {
			return "", 0, err
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		if err := RemoveHeaderFooterCrop(path, tmp.Name(), opts.CropTop, opts.CropBottom); err != nil {
			return "", 0, err
		}
		src = tmp.Name()
	}

	text, err := extractText(src)
	if err != nil {
		return "", 0, err
	}
	return text, pages, nil
}

// RemoveHeaderFooterCrop trims top and bottom page margins of every page.
func RemoveHeaderFooterCrop(inputPath, outputPath string, top, bottom float64) error {
	conf := model.NewDefaultConfiguration()

	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(inputPath, outputPath, []string{"1-"}, box, conf); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}
	return nil
}

func extractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return buf.String(), nil
}
