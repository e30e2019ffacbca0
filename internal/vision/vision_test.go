package vision

import (
	"testing"

	"github.com/andresmejia3/facegate/internal/types"
)

func TestStyle(t *testing.T) {
	tests := []struct {
		verdict types.Verdict
		want    string
	}{
		{types.Recognized, "Face Recognized"},
		{types.NotRecognized, "Not Recognized"},
		{types.Pending, "Verifying..."},
	}
	for _, tt := range tests {
		c, label := style(tt.verdict)
		if label != tt.want {
			t.Errorf("style(%v) label = %q, want %q", tt.verdict, label, tt.want)
		}
		if tt.verdict == types.Recognized && c != green {
			t.Errorf("Recognized colour = %v, want green", c)
		}
	}
}

func TestIsStopKey(t *testing.T) {
	tests := []struct {
		key  int
		want bool
	}{
		{'q', true},
		{'Q', true},
		{27, true},
		{-1, false},
		{'a', false},
		{0x100 | 'q', true},
	}
	for _, tt := range tests {
		if got := isStopKey(tt.key); got != tt.want {
			t.Errorf("isStopKey(%d) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestLargest(t *testing.T) {
	if _, ok := Largest(nil); ok {
		t.Fatal("Largest(nil) reported a face")
	}
	dets := []types.Detection{
		{Box: types.BoundingBox{X: 0, W: 10, H: 10}},
		{Box: types.BoundingBox{X: 50, W: 40, H: 30}},
		{Box: types.BoundingBox{X: 100, W: 20, H: 20}},
	}
	got, ok := Largest(dets)
	if !ok || got.Box.X != 50 {
		t.Errorf("Largest = %v, want box at x=50", got.Box)
	}
}

func TestResizeRoundTrip(t *testing.T) {
	img := types.Image{Width: 8, Height: 4, Channels: 3, Data: make([]byte, 8*4*3)}
	for i := range img.Data {
		img.Data[i] = 128
	}

	out, err := Resize(img, types.Size{Width: 4, Height: 2})
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if out.Width != 4 || out.Height != 2 || out.Channels != 3 {
		t.Fatalf("Resize = %dx%dx%d, want 4x2x3", out.Width, out.Height, out.Channels)
	}
	if len(out.Data) != 4*2*3 || out.Data[0] != 128 {
		t.Errorf("unexpected pixels after resize: len=%d first=%d", len(out.Data), out.Data[0])
	}

	same, err := Resize(img, types.Size{Width: 8, Height: 4})
	if err != nil || same.Width != 8 {
		t.Errorf("Resize to same size = %v, %v", same.Width, err)
	}

	if _, err := Resize(types.Image{}, types.Size{Width: 4, Height: 2}); err == nil {
		t.Error("Resize of empty image succeeded")
	}
}
