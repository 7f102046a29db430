package controller

import (
	"fmt"
	"os"
	"path/filepath"
)

// ensureInvoicePagePreviews writes the PDF under the owner's asset directory,
// renders up to two pages as PNG thumbnails and returns their public URLs.
func (ctrl *controller) ensureInvoicePagePreviews(ownerID, invoiceID uint, pdf []byte) ([]string, error) {
	outDir := filepath.Join(
		ctrl.model.Config.UserAssetsDir(),
		fmt.Sprintf("owner%d", ownerID),
		"invoicepreviews",
		fmt.Sprintf("%d", invoiceID),
	)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	pdfPath := filepath.Join(outDir, "invoice.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
		return nil, err
	}

	_, pngs, err := renderPDFToPNGs(pdfPath, outDir, 144, 2)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(pngs))
	for _, p := range pngs {
		rel, err := filepath.Rel(ctrl.model.Config.UserAssetsDir(), p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, "/userassets/"+filepath.ToSlash(rel))
	}
	return urls, nil
}
