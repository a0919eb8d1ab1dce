package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
)

// Decode turns an encoded picture (JPEG) into a bitmap.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty picture")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return img, nil
}

func EncodeJPEG(img image.Image, dst io.Writer, quality int) error {
	return jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
}

// EncodeJPEGBytes is EncodeJPEG into memory.
func EncodeJPEGBytes(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(img, &buf, quality); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Gradient draws a test pattern of the given size, shifted by seed.
func Gradient(width, height, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		i := y * img.Stride
		for x := 0; x < width; x++ {
			img.Pix[i] = uint8((x + seed) * 255 / max(width, 1))
			img.Pix[i+1] = uint8((y + seed) * 255 / max(height, 1))
			img.Pix[i+2] = uint8(seed * 16)
			img.Pix[i+3] = 0xff
			i += 4
		}
	}

	return img
}
