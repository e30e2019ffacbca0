// Package pipeline runs the capture loop and owns every component it talks to.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/andresmejia3/facegate/internal/cache"
	"github.com/andresmejia3/facegate/internal/dispatch"
	"github.com/andresmejia3/facegate/internal/metrics"
	"github.com/andresmejia3/facegate/internal/queue"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/andresmejia3/facegate/internal/worker"
	"go.uber.org/zap"
)

// ErrCapture is returned by Run when a frame could not be acquired.
var ErrCapture = errors.New("capture failure")

// FrameSource yields frames from the camera. Read may block on the device.
type FrameSource interface {
	Read() (types.Image, error)
	Close() error
}

// Resizer normalizes a frame to the configured size.
type Resizer func(types.Image, types.Size) (types.Image, error)

// Detector finds faces. Crops must not share memory with the frame.
type Detector interface {
	Detect(frame types.Image) ([]types.Detection, error)
}

// Renderer presents a frame and its annotations. Returning true stops the loop.
type Renderer interface {
	Render(frame types.Image, faces []types.Annotation) (stop bool)
	Close() error
}

// Deps are the collaborators handed to the pipeline. The pipeline takes
// ownership and closes Source, Renderer and Dispatcher when Run returns.
type Deps struct {
	Source     FrameSource
	Resize     Resizer
	Detector   Detector
	Renderer   Renderer
	Verifier   *worker.Verifier
	Dispatcher *dispatch.Dispatcher
}

type Options struct {
	Size      types.Size
	Workers   int
	QueueSize int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Stats counts what the loop has done so far.
type Stats struct {
	Cycles     uint64 `json:"cycles"`
	Detections uint64 `json:"detections"`
	Enqueued   uint64 `json:"enqueued"`
	Dropped    uint64 `json:"dropped"`
	Cached     int    `json:"cached"`
}

// Pipeline is the explicit context object tying the capture loop to the queue,
// the result cache, the worker pool and the dispatcher.
type Pipeline struct {
	deps    Deps
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics

	queue *queue.Queue
	cache *cache.Cache
	pool  *worker.Pool

	started    atomic.Bool
	saturated  bool
	cycles     atomic.Uint64
	detections atomic.Uint64
	enqueued   atomic.Uint64
	dropped    atomic.Uint64
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	p := &Pipeline{
		deps:    deps,
		opts:    opts,
		log:     opts.Logger.Named("pipeline"),
		metrics: opts.Metrics,
		queue:   queue.New(opts.QueueSize),
		cache:   cache.New(),
	}
	p.pool = &worker.Pool{
		Queue:    p.queue,
		Cache:    p.cache,
		Verifier: deps.Verifier,
		Workers:  opts.Workers,
		Logger:   opts.Logger.Named("worker"),
		Metrics:  opts.Metrics,
	}
	return p
}

// Run drives one cycle per frame until ctx is cancelled, the renderer asks to
// stop, or a frame cannot be read. Shutdown runs on every exit path. Run may
// only be called once.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("pipeline already started")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	p.pool.Start(workerCtx)
	defer p.shutdown(cancel)

	p.log.Info("🎥 Pipeline running",
		zap.Int("workers", p.opts.Workers),
		zap.Int("queue", p.queue.Cap()),
		zap.String("session", p.deps.Dispatcher.Session()),
	)

	for {
		stop, err := p.cycle()
		if err != nil {
			p.log.Error("🚨 Capture failed, shutting down", zap.Error(err))
			return err
		}
		if stop {
			p.log.Info("🛑 Stop requested from display")
			return nil
		}
		select {
		case <-ctx.Done():
			p.log.Info("🛑 Stop signal received")
			return nil
		default:
		}
	}
}

func (p *Pipeline) cycle() (bool, error) {
	frame, err := p.deps.Source.Read()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	if p.deps.Resize != nil {
		if frame, err = p.deps.Resize(frame, p.opts.Size); err != nil {
			return false, fmt.Errorf("%w: normalize frame: %w", ErrCapture, err)
		}
	}
	p.cycles.Add(1)
	p.metrics.Frames.Inc()

	dets, err := p.deps.Detector.Detect(frame)
	if err != nil {
		p.log.Warn("⚠️  Face detection failed, treating frame as empty", zap.Error(err))
		dets = nil
	}
	p.detections.Add(uint64(len(dets)))
	p.metrics.Detections.Add(float64(len(dets)))

	boxes := make([]types.BoundingBox, len(dets))
	for i, d := range dets {
		boxes[i] = d.Box
	}
	if removed := p.cache.Reconcile(boxes); removed > 0 {
		p.log.Debug("faces left the frame", zap.Int("removed", removed))
	}

	faces := make([]types.Annotation, 0, len(dets))
	for _, d := range dets {
		p.submit(d)
		faces = append(faces, types.Annotation{Box: d.Box, Verdict: p.cache.Get(d.Box)})
	}
	p.metrics.CachedFaces.Set(float64(p.cache.Len()))

	p.deps.Dispatcher.Observe(faces)
	return p.deps.Renderer.Render(frame, faces), nil
}

// submit enqueues without blocking. When the queue is full the new job is
// dropped; the face is still on screen and is resubmitted next cycle.
func (p *Pipeline) submit(d types.Detection) {
	if p.queue.TryEnqueue(d) {
		p.enqueued.Add(1)
		p.metrics.Enqueued.Inc()
		p.saturated = false
		return
	}
	p.dropped.Add(1)
	p.metrics.DroppedJobs.Inc()
	if !p.saturated {
		p.log.Warn("⚠️  Recognition queue full, dropping newest jobs", zap.Int("capacity", p.queue.Cap()))
		p.saturated = true
	}
	p.log.Debug("dropped recognition job", zap.Stringer("box", d.Box))
}

// shutdown stops intake, abandons outstanding verification, joins the workers
// and releases the actuator, display and camera in that order.
func (p *Pipeline) shutdown(cancel context.CancelFunc) {
	p.queue.Close()
	cancel()
	p.pool.Wait()

	if err := p.deps.Dispatcher.Close(); err != nil {
		p.log.Warn("failed to close actuator", zap.Error(err))
	}
	if err := p.deps.Renderer.Close(); err != nil {
		p.log.Warn("failed to close display", zap.Error(err))
	}
	if err := p.deps.Source.Close(); err != nil {
		p.log.Warn("failed to release camera", zap.Error(err))
	}

	s := p.Stats()
	p.log.Info("✅ Pipeline stopped",
		zap.Uint64("cycles", s.Cycles),
		zap.Uint64("detections", s.Detections),
		zap.Uint64("enqueued", s.Enqueued),
		zap.Uint64("dropped", s.Dropped),
	)
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Cycles:     p.cycles.Load(),
		Detections: p.detections.Load(),
		Enqueued:   p.enqueued.Load(),
		Dropped:    p.dropped.Load(),
		Cached:     p.cache.Len(),
	}
}

// Snapshot returns the cached verdicts ordered by position.
func (p *Pipeline) Snapshot() []types.Annotation {
	snap := p.cache.Snapshot()
	out := make([]types.Annotation, 0, len(snap))
	for box, v := range snap {
		out = append(out, types.Annotation{Box: box, Verdict: v})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Box, out[j].Box
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.W != b.W {
			return a.W < b.W
		}
		return a.H < b.H
	})
	return out
}
