package ocr

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/maltedev/shop-compare/internal/captcha/preprocess"
)

var ErrEngineUnavailable = errors.New("OCR engine unavailable")

const (
	MinCandidateLength = 4
	MaxCandidateLength = 8
)

// PageSegMode mirrors the tesseract page segmentation modes used here.
type PageSegMode int

const (
	ModeSingleBlock PageSegMode = 6
	ModeSingleLine  PageSegMode = 7
	ModeSingleWord  PageSegMode = 8
	ModeSingleChar  PageSegMode = 10
)

type Charset struct {
	Name  string
	Chars string
}

var (
	Uppercase    = Charset{Name: "uppercase", Chars: "ABCDEFGHIJKLMNOPQRSTUVWXYZ"}
	Lowercase    = Charset{Name: "lowercase", Chars: "abcdefghijklmnopqrstuvwxyz"}
	Alphanumeric = Charset{Name: "alphanumeric", Chars: Uppercase.Chars + Lowercase.Chars + "0123456789"}
)

// Config is one recognition attempt setting.
type Config struct {
	Mode      PageSegMode
	Whitelist Charset
}

func (c Config) String() string {
	return fmt.Sprintf("psm=%d/%s", c.Mode, c.Whitelist.Name)
}

// Configurations returns the fixed attempt matrix, mode-major.
func Configurations() []Config {
	modes := []PageSegMode{ModeSingleBlock, ModeSingleLine, ModeSingleWord, ModeSingleChar}
	whitelists := []Charset{Alphanumeric, Uppercase, Lowercase}

	configs := make([]Config, 0, len(modes)*len(whitelists))
	for _, m := range modes {
		for _, w := range whitelists {
			configs = append(configs, Config{Mode: m, Whitelist: w})
		}
	}
	return configs
}

// Engine recognizes text in a PNG encoded image.
type Engine interface {
	Recognize(ctx context.Context, png []byte, cfg Config) (string, error)
}

type Candidate struct {
	Text    string
	Variant string
	Config  Config
}

// Normalize strips every whitespace rune, including newlines.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// Plausible reports whether text looks like a challenge answer.
func Plausible(text string) bool {
	n := utf8.RuneCountInString(text)
	return n >= MinCandidateLength && n <= MaxCandidateLength
}

type Runner struct {
	engine  Engine
	configs []Config
	logger  *slog.Logger
}

func NewRunner(engine Engine, logger *slog.Logger) *Runner {
	return &Runner{
		engine:  engine,
		configs: Configurations(),
		logger:  logger.With("component", "ocr_runner"),
	}
}

// Candidates walks variants x configurations lazily, invoking the engine once
// per pair and yielding only plausible texts. Engine failures count as "no
// candidate" for that pair. Breaking out of the loop stops recognition.
func (r *Runner) Candidates(ctx context.Context, variants []preprocess.Variant) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, v := range variants {
			if !v.OK() {
				r.logger.Debug("skipping variant", "variant", v.Name, "error", v.Err)
				continue
			}

			data, err := v.Bitmap.PNG()
			if err != nil {
				r.logger.Debug("skipping variant", "variant", v.Name, "error", err)
				continue
			}

			for _, cfg := range r.configs {
				if ctx.Err() != nil {
					return
				}

				text, err := r.engine.Recognize(ctx, data, cfg)
				if err != nil {
					r.logger.Debug("recognition failed", "variant", v.Name, "config", cfg.String(), "error", err)
					continue
				}

				text = Normalize(text)
				if !Plausible(text) {
					continue
				}

				if !yield(Candidate{Text: text, Variant: v.Name, Config: cfg}) {
					return
				}
			}
		}
	}
}
