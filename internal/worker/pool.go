package worker

import (
	"context"
	"sync"
	"time"

	"github.com/andresmejia3/facegate/internal/cache"
	"github.com/andresmejia3/facegate/internal/metrics"
	"github.com/andresmejia3/facegate/internal/queue"
	"go.uber.org/zap"
)

// Pool drains the recognition queue with a fixed number of goroutines. Each
// worker cycles Idle -> Dequeue -> Verify -> Publish, where Publish is a single
// cache upsert. Verification always runs outside the cache lock.
type Pool struct {
	Queue    *queue.Queue
	Cache    *cache.Cache
	Verifier *Verifier
	Workers  int
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	wg sync.WaitGroup
}

// Start launches the workers. They exit when the queue is closed or ctx is
// cancelled; cancelling abandons whatever verification is in flight.
func (p *Pool) Start(ctx context.Context) {
	n := p.Workers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.Logger.Info("⚙️  Recognition workers started", zap.Int("workers", n))
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.Logger.With(zap.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopping", zap.Error(ctx.Err()))
			return
		case job, ok := <-p.Queue.Jobs():
			if !ok {
				log.Debug("queue closed, worker stopping")
				return
			}
			p.process(ctx, log, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, job queue.Job) {
	// A crashing model must not take the worker down. Nothing is published, so
	// the face stays Pending and is resubmitted on the next frame.
	defer func() {
		if r := recover(); r != nil {
			log.Error("🚨 Verification panicked", zap.Any("panic", r), zap.Stringer("box", job.Detection.Box))
		}
	}()

	start := time.Now()
	res, err := p.Verifier.Verify(ctx, job.Detection.Crop)
	if err != nil {
		log.Debug("verification abandoned", zap.Uint64("seq", job.Seq), zap.Error(err))
		return
	}

	p.Cache.Upsert(job.Detection.Box, res.Verdict)

	p.Metrics.VerificationDuration.Observe(time.Since(start).Seconds())
	p.Metrics.Verifications.WithLabelValues(res.Verdict.String()).Inc()
	p.Metrics.ComparisonFailures.Add(float64(res.Failures))

	log.Debug("published verdict",
		zap.Stringer("box", job.Detection.Box),
		zap.Stringer("verdict", res.Verdict),
		zap.Float64("distance", res.Distance),
		zap.Int("comparisons", res.Comparisons),
		zap.Duration("queued", start.Sub(job.EnqueuedAt)),
	)
}
