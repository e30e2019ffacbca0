package vision

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/andresmejia3/facegate/internal/types"
	"gocv.io/x/gocv"
)

// CascadeDetector finds frontal faces with a Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

func NewCascadeDetector(path string) (*CascadeDetector, error) {
	c := gocv.NewCascadeClassifier()
	if !c.Load(path) {
		c.Close()
		return nil, fmt.Errorf("failed to load cascade classifier from %s", path)
	}
	return &CascadeDetector{classifier: c}, nil
}

// Detect returns every face with its own copy of the pixels.
func (d *CascadeDetector) Detect(frame types.Image) ([]types.Detection, error) {
	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	d.mu.Lock()
	rects := d.classifier.DetectMultiScale(mat)
	d.mu.Unlock()

	bounds := image.Rect(0, 0, frame.Width, frame.Height)
	out := make([]types.Detection, 0, len(rects))
	for _, r := range rects {
		r = r.Intersect(bounds)
		if r.Empty() {
			continue
		}
		region := mat.Region(r)
		crop := region.Clone()
		region.Close()
		out = append(out, types.Detection{Crop: toImage(crop), Box: types.BoxFromRect(r)})
		crop.Close()
	}
	return out, nil
}

// Largest returns the detection with the biggest area.
func Largest(dets []types.Detection) (types.Detection, bool) {
	if len(dets) == 0 {
		return types.Detection{}, false
	}
	sorted := append([]types.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.W*sorted[i].Box.H > sorted[j].Box.W*sorted[j].Box.H
	})
	return sorted[0], true
}

func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
