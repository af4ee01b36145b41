package ocr

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"unicode/utf8"

	"github.com/maltedev/shop-compare/internal/captcha/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine answers from a fixed list, one entry per call.
type scriptedEngine struct {
	answers []string
	errs    []error
	calls   []Config
}

func (e *scriptedEngine) Recognize(ctx context.Context, png []byte, cfg Config) (string, error) {
	i := len(e.calls)
	e.calls = append(e.calls, cfg)
	if i < len(e.errs) && e.errs[i] != nil {
		return "", e.errs[i]
	}
	if i < len(e.answers) {
		return e.answers[i], nil
	}
	return "", nil
}

func variants(names ...string) []preprocess.Variant {
	out := make([]preprocess.Variant, 0, len(names))
	for _, n := range names {
		out = append(out, preprocess.Variant{Name: n, Bitmap: preprocess.NewBitmap(4, 4)})
	}
	return out
}

func TestConfigurations(t *testing.T) {
	configs := Configurations()
	require.Len(t, configs, 12)

	assert.Equal(t, Config{Mode: ModeSingleBlock, Whitelist: Alphanumeric}, configs[0])
	assert.Equal(t, Config{Mode: ModeSingleBlock, Whitelist: Uppercase}, configs[1])
	assert.Equal(t, Config{Mode: ModeSingleBlock, Whitelist: Lowercase}, configs[2])
	assert.Equal(t, Config{Mode: ModeSingleChar, Whitelist: Lowercase}, configs[11])

	seen := map[string]bool{}
	for _, c := range configs {
		seen[c.String()] = true
	}
	assert.Len(t, seen, 12)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "ABCD", "ABCD"},
		{"Trailing newline", "ABCD\n", "ABCD"},
		{"Inner spaces", " AB CD\t", "ABCD"},
		{"Multiple lines", "AB\nCD\r\n", "ABCD"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestPlausible(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{"ABC", false},
		{"ABCD", true},
		{"ABCDEF", true},
		{"ABCDEFGH", true},
		{"ABCDEFGHI", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Plausible(tt.input), "Plausible(%q)", tt.input)
	}
}

func TestRunner_Candidates(t *testing.T) {
	ctx := context.Background()

	t.Run("yields only plausible normalized texts", func(t *testing.T) {
		engine := &scriptedEngine{answers: []string{"AB", "XKCD\n", "TOOLONGTEXT", " Q W E R T "}}
		runner := NewRunner(engine, slog.Default())

		var got []Candidate
		for c := range runner.Candidates(ctx, variants("contrast")) {
			got = append(got, c)
		}

		require.Len(t, got, 2)
		assert.Equal(t, "XKCD", got[0].Text)
		assert.Equal(t, "contrast", got[0].Variant)
		assert.Equal(t, Config{Mode: ModeSingleBlock, Whitelist: Uppercase}, got[0].Config)
		assert.Equal(t, "QWERT", got[1].Text)

		for _, c := range got {
			n := utf8.RuneCountInString(c.Text)
			assert.True(t, n >= MinCandidateLength && n <= MaxCandidateLength)
		}
		assert.Len(t, engine.calls, 12)
	})

	t.Run("engine errors do not abort the matrix", func(t *testing.T) {
		engine := &scriptedEngine{
			answers: []string{"", "", "", "WXYZ"},
			errs:    []error{ErrEngineUnavailable, errors.New("crash"), ErrEngineUnavailable},
		}
		runner := NewRunner(engine, slog.Default())

		var got []string
		for c := range runner.Candidates(ctx, variants("contrast", "edge")) {
			got = append(got, c.Text)
		}

		assert.Equal(t, []string{"WXYZ"}, got)
		assert.Len(t, engine.calls, 24)
	})

	t.Run("failed variants are skipped", func(t *testing.T) {
		engine := &scriptedEngine{}
		runner := NewRunner(engine, slog.Default())

		vs := []preprocess.Variant{
			{Name: "contrast", Err: preprocess.ErrEmptyImage},
			{Name: "edge", Bitmap: preprocess.NewBitmap(2, 2)},
		}
		for range runner.Candidates(ctx, vs) {
		}

		assert.Len(t, engine.calls, 12)
	})

	t.Run("stopping early stops recognition", func(t *testing.T) {
		engine := &scriptedEngine{answers: []string{"ABCD", "EFGH", "IJKL"}}
		runner := NewRunner(engine, slog.Default())

		for c := range runner.Candidates(ctx, variants("contrast", "edge")) {
			assert.Equal(t, "ABCD", c.Text)
			break
		}

		assert.Len(t, engine.calls, 1)
	})

	t.Run("cancelled context stops recognition", func(t *testing.T) {
		engine := &scriptedEngine{}
		runner := NewRunner(engine, slog.Default())

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		for range runner.Candidates(cctx, variants("contrast")) {
		}

		assert.Empty(t, engine.calls)
	})
}
