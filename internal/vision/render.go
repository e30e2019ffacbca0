package vision

import (
	"image"
	"image/color"

	"github.com/andresmejia3/facegate/internal/types"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var (
	green  = color.RGBA{0, 255, 0, 0}
	red    = color.RGBA{255, 0, 0, 0}
	yellow = color.RGBA{255, 255, 0, 0}
)

// style maps a verdict to its box colour and label.
func style(v types.Verdict) (color.RGBA, string) {
	switch v {
	case types.Recognized:
		return green, "Face Recognized"
	case types.NotRecognized:
		return red, "Not Recognized"
	default:
		return yellow, "Verifying..."
	}
}

// isStopKey reports whether a WaitKey result is q or Esc.
func isStopKey(key int) bool {
	k := key & 0xFF
	return k == 'q' || k == 'Q' || k == 27
}

// WindowRenderer draws annotated frames in a desktop window.
type WindowRenderer struct {
	window *gocv.Window
	delay  int
}

func NewWindowRenderer(title string) *WindowRenderer {
	return &WindowRenderer{window: gocv.NewWindow(title), delay: 10}
}

func (w *WindowRenderer) Render(frame types.Image, faces []types.Annotation) bool {
	mat, err := toMat(frame)
	if err != nil {
		return false
	}
	defer mat.Close()

	for _, f := range faces {
		c, label := style(f.Verdict)
		r := f.Box.Rect()
		gocv.Rectangle(&mat, r, c, 2)
		gocv.PutText(&mat, label, image.Pt(r.Min.X, r.Min.Y-20), gocv.FontHersheySimplex, 0.6, c, 2)
	}
	w.window.IMShow(mat)
	return isStopKey(w.window.WaitKey(w.delay))
}

func (w *WindowRenderer) Close() error {
	return w.window.Close()
}

// HeadlessRenderer is used when no display is attached. It never stops the
// loop on its own.
type HeadlessRenderer struct {
	log  *zap.Logger
	last int
}

func NewHeadlessRenderer(log *zap.Logger) *HeadlessRenderer {
	return &HeadlessRenderer{log: log, last: -1}
}

func (h *HeadlessRenderer) Render(frame types.Image, faces []types.Annotation) bool {
	if len(faces) != h.last {
		h.log.Debug("faces in view", zap.Int("count", len(faces)))
		h.last = len(faces)
	}
	for _, f := range faces {
		_, label := style(f.Verdict)
		h.log.Debug("face", zap.Stringer("box", f.Box), zap.String("label", label))
	}
	return false
}

func (h *HeadlessRenderer) Close() error {
	return nil
}
