//go:build cgo
// +build cgo

package controller

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
)

// renderPDFToPNGs rasterizes up to maxPages pages of the PDF at the given
// dpi. It returns the page sizes in centimeters and the written PNG paths.
func renderPDFToPNGs(pdfPath, outDir string, dpi, maxPages int) (sizes [][2]float64, pngPaths []string, err error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n > maxPages {
		n = maxPages
	}

	for i := 0; i < n; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, nil, fmt.Errorf("cannot rasterize page %d: %w", i+1, err)
		}

		b := img.Bounds()
		wcm := float64(b.Dx()) / float64(dpi) * 2.54
		hcm := float64(b.Dy()) / float64(dpi) * 2.54

		out := filepath.Join(outDir, fmt.Sprintf("page%d.png", i+1))
		if err := savePNG(out, img); err != nil {
			return nil, nil, err
		}
		sizes = append(sizes, [2]float64{wcm, hcm})
		pngPaths = append(pngPaths, out)
	}
	return sizes, pngPaths, nil
}

func savePNG(path string, m image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, m)
}
