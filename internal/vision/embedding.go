package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/andresmejia3/facegate/internal/corpus"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/andresmejia3/facegate/internal/worker"
	"gocv.io/x/gocv"
)

// embeddingSize is the input edge length of OpenFace style networks.
const embeddingSize = 96

// EmbeddingComparer scores faces by the cosine distance between their network
// embeddings. Reference images are decoded and embedded on every call.
type EmbeddingComparer struct {
	mu  sync.Mutex
	net gocv.Net
}

func NewEmbeddingComparer(model string) (*EmbeddingComparer, error) {
	net := gocv.ReadNet(model, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load embedding model from %s", model)
	}
	return &EmbeddingComparer{net: net}, nil
}

func (e *EmbeddingComparer) Compare(ctx context.Context, crop types.FaceCrop, ref corpus.Reference) (float64, error) {
	face, err := toMat(crop)
	if err != nil {
		return 0, fmt.Errorf("crop: %w", err)
	}
	defer face.Close()

	data, err := ref.Bytes()
	if err != nil {
		return 0, fmt.Errorf("read reference %s: %w", ref.Name, err)
	}
	refMat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return 0, fmt.Errorf("decode reference %s: %w", ref.Name, err)
	}
	defer refMat.Close()
	if refMat.Empty() {
		return 0, fmt.Errorf("decode reference %s: unsupported or empty image", ref.Name)
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a, err := e.embed(face)
	if err != nil {
		return 0, err
	}
	b, err := e.embed(refMat)
	if err != nil {
		return 0, err
	}
	return worker.CosineDistance(a, b), nil
}

// embed runs one forward pass. gocv.Net is not safe for concurrent use.
func (e *EmbeddingComparer) embed(img gocv.Mat) ([]float32, error) {
	blob := gocv.BlobFromImage(img, 1.0/255, image.Pt(embeddingSize, embeddingSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, fmt.Errorf("embedding network returned no output")
	}

	vec := make([]float32, out.Total())
	for i := range vec {
		vec[i] = out.GetFloatAt(0, i)
	}
	return vec, nil
}

func (e *EmbeddingComparer) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
