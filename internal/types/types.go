package types

import (
	"fmt"
	"image"
	"time"
)

// Image holds raw interleaved 8-bit pixels (BGR when it comes from the camera).
// Frames and face crops both travel through the pipeline as Images so that
// nothing outside internal/vision needs to link against OpenCV.
type Image struct {
	Width    int
	Height   int
	Channels int
	Data     []byte
}

// Empty reports whether the image carries no pixels.
func (i Image) Empty() bool {
	return i.Width <= 0 || i.Height <= 0 || len(i.Data) == 0
}

// Clone returns a deep copy so the receiver can be handed to another goroutine.
func (i Image) Clone() Image {
	data := make([]byte, len(i.Data))
	copy(data, i.Data)
	return Image{Width: i.Width, Height: i.Height, Channels: i.Channels, Data: data}
}

// Size is the frame normalization size.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// BoundingBox is a detected face region. It doubles as the cache key for a face,
// so the same person is only "the same entry" while they occupy the same pixels.
type BoundingBox struct {
	X, Y, W, H int
}

// Rect converts the box into an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.W, b.H)
}

// BoxFromRect is the inverse of Rect.
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// FaceCrop is the sub-image extracted at a BoundingBox. It is never mutated after
// the detector creates it.
type FaceCrop = Image

// Detection pairs a crop with the box it was cut from.
type Detection struct {
	Crop FaceCrop
	Box  BoundingBox
}

// Verdict is the recognition state of a face.
type Verdict int

const (
	Pending Verdict = iota
	Recognized
	NotRecognized
)

func (v Verdict) String() string {
	switch v {
	case Recognized:
		return "Recognized"
	case NotRecognized:
		return "Not Recognized"
	default:
		return "Pending"
	}
}

// Annotation is the (box, verdict) pair read from the cache during a cycle.
type Annotation struct {
	Box     BoundingBox
	Verdict Verdict
}

// SignalEvent is a single command sent (or simulated) to the actuator.
type SignalEvent struct {
	Session   string
	Command   string
	Box       BoundingBox
	Simulated bool
	At        time.Time
}
