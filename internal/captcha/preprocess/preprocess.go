// Package preprocess turns a raw challenge image into binary bitmaps that are
// easier for an OCR engine to read.
package preprocess

import (
	"image"
)

const (
	contrastScale     = 2
	contrastThreshold = 100.0

	edgeThreshold = 50.0

	darkThreshold = 150
	maxSpread     = 50

	adaptiveWindow = 15
	adaptiveBias   = 10.0
)

// Filter derives one bitmap from a source. Filters never modify the source.
type Filter func(src *Source) (*Bitmap, error)

type Step struct {
	Name   string
	Filter Filter
}

// Variant is the outcome of one step. Err is set when the step failed.
type Variant struct {
	Name   string
	Bitmap *Bitmap
	Err    error
}

func (v Variant) OK() bool {
	return v.Err == nil && v.Bitmap != nil
}

// DefaultSteps returns the variants in the order they are tried.
func DefaultSteps() []Step {
	return []Step{
		{Name: "contrast", Filter: Contrast},
		{Name: "edge", Filter: Edge},
		{Name: "color", Filter: ColorFilter},
		{Name: "adaptive", Filter: AdaptiveThreshold},
	}
}

func Run(img image.Image) []Variant {
	return RunSteps(img, DefaultSteps()...)
}

// RunSteps applies every step independently. A failing step is reported in
// its Variant and does not stop the remaining steps.
func RunSteps(img image.Image, steps ...Step) []Variant {
	src, srcErr := NewSource(img)

	variants := make([]Variant, 0, len(steps))
	for _, step := range steps {
		v := Variant{Name: step.Name}
		if srcErr != nil {
			v.Err = srcErr
		} else {
			v.Bitmap, v.Err = step.Filter(src)
		}
		variants = append(variants, v)
	}
	return variants
}

// Contrast upscales 2x and binarizes the luminance at a fixed threshold.
func Contrast(src *Source) (*Bitmap, error) {
	if err := src.valid(); err != nil {
		return nil, err
	}

	scaled := src.Scale(contrastScale)
	w, h := scaled.Width(), scaled.Height()
	out := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, scaled.Luminance(x, y) <= contrastThreshold)
		}
	}
	return out, nil
}

// Edge marks interior pixels whose luminance differs strongly from their
// right and bottom neighbours.
func Edge(src *Source) (*Bitmap, error) {
	if err := src.valid(); err != nil {
		return nil, err
	}

	w, h := src.Width(), src.Height()
	out := NewBitmap(w, h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			l := src.Luminance(x, y)
			strength := abs(l-src.Luminance(x+1, y)) + abs(l-src.Luminance(x, y+1))
			out.Set(x, y, strength > edgeThreshold)
		}
	}
	return out, nil
}

// ColorFilter keeps dark, roughly gray pixels: uniform dark text rather than
// a coloured background.
func ColorFilter(src *Source) (*Bitmap, error) {
	if err := src.valid(); err != nil {
		return nil, err
	}

	w, h := src.Width(), src.Height()
	out := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := src.RGB(x, y)
			dark := r < darkThreshold && g < darkThreshold && b < darkThreshold
			uniform := int(max(r, g, b))-int(min(r, g, b)) < maxSpread
			out.Set(x, y, dark && uniform)
		}
	}
	return out, nil
}

// AdaptiveThreshold binarizes each pixel against the mean luminance of its
// 15x15 neighbourhood minus a bias. The window is clamped at the borders.
func AdaptiveThreshold(src *Source) (*Bitmap, error) {
	if err := src.valid(); err != nil {
		return nil, err
	}

	w, h := src.Width(), src.Height()
	sum := integral(src)
	half := adaptiveWindow / 2

	out := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w-1, x+half)

			area := float64((x1 - x0 + 1) * (y1 - y0 + 1))
			total := sum[(y1+1)*(w+1)+x1+1] - sum[y0*(w+1)+x1+1] - sum[(y1+1)*(w+1)+x0] + sum[y0*(w+1)+x0]
			threshold := total/area - adaptiveBias

			out.Set(x, y, src.Luminance(x, y) <= threshold)
		}
	}
	return out, nil
}

// integral builds a summed-area table of luminance with a zero first row and
// column, (w+1)*(h+1) entries.
func integral(src *Source) []float64 {
	w, h := src.Width(), src.Height()
	sum := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0.0
		for x := 0; x < w; x++ {
			row += src.Luminance(x, y)
			sum[(y+1)*(w+1)+x+1] = sum[y*(w+1)+x+1] + row
		}
	}
	return sum
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
