// Package vision adapts OpenCV (gocv) to the pipeline's camera, detector,
// comparer and display interfaces. It is the only package that needs cgo.
package vision

import (
	"fmt"
	"image"

	"github.com/andresmejia3/facegate/internal/types"
	"gocv.io/x/gocv"
)

// toImage copies a BGR Mat into an Image.
func toImage(m gocv.Mat) types.Image {
	return types.Image{
		Width:    m.Cols(),
		Height:   m.Rows(),
		Channels: m.Channels(),
		Data:     m.ToBytes(),
	}
}

// toMat wraps an Image in a new Mat. The caller owns the result.
func toMat(img types.Image) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}
	mt := gocv.MatTypeCV8UC3
	switch img.Channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
	default:
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", img.Channels)
	}
	return gocv.NewMatFromBytes(img.Height, img.Width, mt, img.Data)
}

// Resize normalizes a frame to size.
func Resize(img types.Image, size types.Size) (types.Image, error) {
	if img.Width == size.Width && img.Height == size.Height {
		return img, nil
	}
	src, err := toMat(img)
	if err != nil {
		return types.Image{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(size.Width, size.Height), 0, 0, gocv.InterpolationLinear)
	if dst.Empty() {
		return types.Image{}, fmt.Errorf("resize to %dx%d failed", size.Width, size.Height)
	}
	return toImage(dst), nil
}

// Decode decodes an encoded image file (JPEG, PNG, ...) into a BGR Image.
func Decode(data []byte) (types.Image, error) {
	m, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return types.Image{}, err
	}
	defer m.Close()
	if m.Empty() {
		return types.Image{}, fmt.Errorf("unsupported or empty image")
	}
	return toImage(m), nil
}
