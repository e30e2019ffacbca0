package vision

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/andresmejia3/facegate/internal/types"
	"gocv.io/x/gocv"
)

var errNoFrame = errors.New("failed to grab frame")

// Camera is a FrameSource backed by an OpenCV capture device.
type Camera struct {
	device string
	cap    *gocv.VideoCapture
	mat    gocv.Mat
}

// OpenCamera opens a local device index ("0") or any path or URL OpenCV can
// read, such as a video file or an RTSP stream.
func OpenCamera(device string) (*Camera, error) {
	var src interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		src = id
	}
	vc, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %q: device not available", device)
	}
	return &Camera{device: device, cap: vc, mat: gocv.NewMat()}, nil
}

// Read blocks until the device delivers the next frame.
func (c *Camera) Read() (types.Image, error) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return types.Image{}, fmt.Errorf("%w from %q", errNoFrame, c.device)
	}
	return toImage(c.mat), nil
}

func (c *Camera) Close() error {
	c.mat.Close()
	return c.cap.Close()
}
