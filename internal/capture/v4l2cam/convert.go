package v4l2cam

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// yuyvToBGRX converts a packed YUYV 4:2:2 frame to BGRX using BT.601
// limited-range coefficients. srcStride 0 means 2*width.
func yuyvToBGRX(dst, src []byte, width, height, srcStride int) error {
	if srcStride == 0 {
		srcStride = width * 2
	}
	if srcStride < width*2 {
		return fmt.Errorf("yuyv stride %d shorter than %d pixels", srcStride, width)
	}
	if need := srcStride*(height-1) + width*2; len(src) < need {
		return fmt.Errorf("yuyv frame has %d bytes, need %d", len(src), need)
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("bgrx buffer has %d bytes, need %d", len(dst), width*height*4)
	}

	for y := 0; y < height; y++ {
		in := src[y*srcStride : y*srcStride+width*2]
		out := dst[y*width*4 : (y+1)*width*4]
		for x := 0; x+1 < width; x += 2 {
			i := x * 2
			y0, u, y1, v := int(in[i]), int(in[i+1]), int(in[i+2]), int(in[i+3])
			putBGRX(out[x*4:], y0, u, v)
			putBGRX(out[(x+1)*4:], y1, u, v)
		}
		if width%2 == 1 {
			x := width - 1
			i := x * 2
			putBGRX(out[x*4:], int(in[i]), int(in[i+1]), 128)
		}
	}
	return nil
}

func putBGRX(out []byte, y, u, v int) {
	c := 298 * (y - 16)
	d := u - 128
	e := v - 128
	out[0] = clamp((c + 516*d + 128) >> 8)
	out[1] = clamp((c - 100*d - 208*e + 128) >> 8)
	out[2] = clamp((c + 409*e + 128) >> 8)
	out[3] = 0
}

func clamp(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return byte(v)
	}
}

// mjpegToBGRX decodes one MJPEG frame into dst.
// TODO: insert the default Huffman table for cameras whose frames omit DHT.
func mjpegToBGRX(dst, src []byte, width, height int) error {
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("decode mjpeg frame: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("mjpeg frame is %dx%d, expected %dx%d", b.Dx(), b.Dy(), width, height)
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("bgrx buffer has %d bytes, need %d", len(dst), width*height*4)
	}

	nrgba := imaging.Clone(img)
	for y := 0; y < height; y++ {
		in := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		out := dst[y*width*4 : (y+1)*width*4]
		for i := 0; i < len(in); i += 4 {
			out[i+0] = in[i+2]
			out[i+1] = in[i+1]
			out[i+2] = in[i+0]
			out[i+3] = 0
		}
	}
	return nil
}
