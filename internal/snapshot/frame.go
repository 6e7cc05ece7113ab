// Package snapshot converts grabbed frames to images and writes numbered
// JPEG files.
package snapshot

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Frame is a raw BGRX frame: 4 bytes per pixel in B, G, R, X order, rows
// top-down, Stride bytes apart.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// ToImage converts a BGRX frame to an opaque NRGBA image.
func ToImage(f Frame) (*image.NRGBA, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	stride := f.Stride
	if stride == 0 {
		stride = f.Width * 4
	}
	if stride < f.Width*4 {
		return nil, fmt.Errorf("stride %d shorter than row of %d pixels", stride, f.Width)
	}
	// The last row only needs Width*4 bytes.
	need := stride*(f.Height-1) + f.Width*4
	if len(f.Pix) < need {
		return nil, fmt.Errorf("frame buffer has %d bytes, need %d", len(f.Pix), need)
	}

	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*stride : y*stride+f.Width*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < len(src); x += 4 {
			dst[x+0] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x+0]
			dst[x+3] = 0xff
		}
	}
	return img, nil
}

// Transform describes optional post-processing applied before encoding.
type Transform struct {
	// Rotate is a counter-clockwise rotation in degrees: 0, 90, 180 or 270.
	Rotate    int
	FlipH     bool
	MaxWidth  int
	MaxHeight int
}

// Validate checks the rotation angle and size limits.
func (t Transform) Validate() error {
	switch t.Rotate {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("rotate must be 0, 90, 180 or 270, got %d", t.Rotate)
	}
	if t.MaxWidth < 0 || t.MaxHeight < 0 {
		return fmt.Errorf("max size must not be negative")
	}
	return nil
}

// Apply runs the transform. The input is returned unchanged when there is
// nothing to do.
func (t Transform) Apply(img image.Image) image.Image {
	out := img
	switch t.Rotate {
	case 90:
		out = imaging.Rotate90(out)
	case 180:
		out = imaging.Rotate180(out)
	case 270:
		out = imaging.Rotate270(out)
	}
	if t.FlipH {
		out = imaging.FlipH(out)
	}
	if t.MaxWidth > 0 || t.MaxHeight > 0 {
		b := out.Bounds()
		maxW, maxH := t.MaxWidth, t.MaxHeight
		if maxW == 0 {
			maxW = b.Dx()
		}
		if maxH == 0 {
			maxH = b.Dy()
		}
		if b.Dx() > maxW || b.Dy() > maxH {
			out = imaging.Fit(out, maxW, maxH, imaging.Lanczos)
		}
	}
	return out
}
