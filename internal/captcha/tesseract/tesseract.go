// Package tesseract binds the OCR runner to libtesseract through gosseract.
package tesseract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/maltedev/shop-compare/internal/captcha/ocr"
	"github.com/otiai10/gosseract/v2"
)

type Options struct {
	TessdataDir string
	Languages   []string
}

type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	return &Engine{opts: opts}
}

// Recognize runs one recognition with a fresh client. The page segmentation
// is pinned to single word; the configured mode is passed as a variable.
func (e *Engine) Recognize(ctx context.Context, png []byte, cfg ocr.Config) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := ocr.CheckDataDir(e.opts.TessdataDir); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.opts.TessdataDir != "" {
		if err := client.SetTessdataPrefix(e.opts.TessdataDir); err != nil {
			return "", fmt.Errorf("%w: %v", ocr.ErrEngineUnavailable, err)
		}
	}
	if err := client.SetLanguage(e.opts.Languages...); err != nil {
		return "", fmt.Errorf("%w: %v", ocr.ErrEngineUnavailable, err)
	}
	if err := client.SetVariable("tessedit_pageseg_mode", strconv.Itoa(int(cfg.Mode))); err != nil {
		return "", fmt.Errorf("failed to set segmentation mode: %w", err)
	}
	if err := client.SetWhitelist(cfg.Whitelist.Chars); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_WORD); err != nil {
		return "", fmt.Errorf("failed to pin segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognition failed: %w", err)
	}
	return text, nil
}
