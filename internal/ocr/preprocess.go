package ocr

import (
	"image"

	"golang.org/x/image/draw"
)

// Preprocess describes the image cleanup applied before recognition.
type Preprocess struct {
	Threshold uint8 // binarization cut-off; 0 leaves grayscale as is
	MinWidth  int   // narrower images are upscaled to this width
}

// Apply converts img to grayscale, upscales narrow images and binarizes.
func (p Preprocess) Apply(img image.Image) *image.Gray {
	b := img.Bounds()
	var gray *image.Gray
	if p.MinWidth > 0 && b.Dx() > 0 && b.Dx() < p.MinWidth {
		h := b.Dy() * p.MinWidth / b.Dx()
		gray = image.NewGray(image.Rect(0, 0, p.MinWidth, h))
		draw.CatmullRom.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	} else {
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	}
	if p.Threshold > 0 {
		Binarize(gray, p.Threshold)
	}
	return gray
}

// Binarize maps pixels above threshold to white and the rest to black, in place.
func Binarize(g *image.Gray, threshold uint8) {
	for i, v := range g.Pix {
		if v > threshold {
			g.Pix[i] = 0xff
		} else {
			g.Pix[i] = 0
		}
	}
}
