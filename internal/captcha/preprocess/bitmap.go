package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	Black uint8 = 0
	White uint8 = 255
)

var ErrEmptyImage = errors.New("challenge image is empty")

// Source is the RGB view of a challenge image the filters read from.
type Source struct {
	img *image.NRGBA
}

func NewSource(img image.Image) (*Source, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	return &Source{img: imaging.Clone(img)}, nil
}

func (s *Source) Width() int {
	return s.img.Rect.Dx()
}

func (s *Source) Height() int {
	return s.img.Rect.Dy()
}

// RGB returns the 8-bit channels at (x, y). Alpha is ignored.
func (s *Source) RGB(x, y int) (r, g, b uint8) {
	i := y*s.img.Stride + x*4
	return s.img.Pix[i], s.img.Pix[i+1], s.img.Pix[i+2]
}

// Luminance uses the ITU-R 601 weights.
func (s *Source) Luminance(x, y int) float64 {
	r, g, b := s.RGB(x, y)
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Scale returns a copy resized by factor with linear interpolation.
func (s *Source) Scale(factor int) *Source {
	w, h := s.Width()*factor, s.Height()*factor
	return &Source{img: imaging.Resize(s.img, w, h, imaging.Linear)}
}

func (s *Source) valid() error {
	if s == nil || s.img == nil || s.Width() == 0 || s.Height() == 0 {
		return ErrEmptyImage
	}
	return nil
}

// Bitmap is a binary image: every pixel is either Black or White.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewBitmap(width, height int) *Bitmap {
	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = White
	}
	return &Bitmap{Width: width, Height: height, Pix: pix}
}

func (b *Bitmap) At(x, y int) uint8 {
	return b.Pix[y*b.Width+x]
}

// Set marks (x, y) as foreground (black) or background (white).
func (b *Bitmap) Set(x, y int, foreground bool) {
	v := White
	if foreground {
		v = Black
	}
	b.Pix[y*b.Width+x] = v
}

func (b *Bitmap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.Pix)
	return img
}

// PNG encodes the bitmap for the OCR engine.
func (b *Bitmap) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, b.Image(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode bitmap: %w", err)
	}
	return buf.Bytes(), nil
}
