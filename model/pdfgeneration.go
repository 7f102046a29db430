package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrRenderFailed marks failures of the external PDF rendering service. The
// export path is independent of the editing session; callers report the error
// and keep the draft untouched.
var ErrRenderFailed = fmt.Errorf("pdf rendering failed")

// RenderPDF converts a complete self-contained HTML document into PDF bytes
// by handing it to the configured rendering service (a headless browser
// behind an HTTP endpoint). The call is the one true asynchronous boundary of
// the invoice flow: it may be slow or fail without affecting any draft state.
func (store *Store) RenderPDF(ctx context.Context, html string, logger *slog.Logger) ([]byte, error) {
	addr := store.Config.RenderServerAddress
	if addr == "" {
		return nil, fmt.Errorf("%w: no render server configured", ErrRenderFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("Accept", "application/pdf")

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Error("PDF generation failed", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: render server returned %d", ErrRenderFailed, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	logger.Debug("PDF generation done", "bytes", buf.Len(), "latency_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
