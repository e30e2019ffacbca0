// Package dispatch turns Recognized verdicts into actuator commands.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/andresmejia3/facegate/internal/metrics"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCommand unlocks the door.
const DefaultCommand = "OPEN"

// Recorder persists dispatched signals. Failures are logged and ignored.
type Recorder interface {
	RecordEvent(ctx context.Context, ev types.SignalEvent) error
}

type Options struct {
	Command string
	// EdgeTriggered sends only when a box turns Recognized instead of on every
	// cycle it is read as Recognized.
	EdgeTriggered bool
	// Buffer is the number of commands that may wait for the actuator.
	Buffer   int
	Recorder Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Dispatcher sends commands without ever blocking the capture loop. A single
// sender goroutine owns the actuator; Observe only hands events over.
type Dispatcher struct {
	actuator  Actuator
	simulated bool
	opts      Options
	session   string
	log       *zap.Logger

	// last is only touched by Observe, which runs on the capture loop.
	last map[types.BoundingBox]types.Verdict

	mu      sync.RWMutex
	closed  bool
	pending chan types.SignalEvent
	done    chan struct{}
	once    sync.Once
	err     error
}

// New starts the sender goroutine. Close must be called to release act.
func New(act Actuator, opts Options) *Dispatcher {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Buffer < 1 {
		opts.Buffer = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	_, simulated := act.(*Simulated)

	d := &Dispatcher{
		actuator:  act,
		simulated: simulated,
		opts:      opts,
		session:   uuid.NewString(),
		log:       opts.Logger,
		last:      make(map[types.BoundingBox]types.Verdict),
		pending:   make(chan types.SignalEvent, opts.Buffer),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

// Session identifies this run in recorded events.
func (d *Dispatcher) Session() string {
	return d.session
}

// Observe is called once per cycle with the verdicts read for that cycle. It
// returns how many commands were handed to the sender.
func (d *Dispatcher) Observe(faces []types.Annotation) int {
	seen := make(map[types.BoundingBox]types.Verdict, len(faces))
	queued := 0
	for _, f := range faces {
		seen[f.Box] = f.Verdict
		if f.Verdict != types.Recognized {
			continue
		}
		if d.opts.EdgeTriggered && d.last[f.Box] == types.Recognized {
			continue
		}
		if d.submit(types.SignalEvent{
			Session:   d.session,
			Command:   d.opts.Command,
			Box:       f.Box,
			Simulated: d.simulated,
			At:        time.Now(),
		}) {
			queued++
		}
	}
	d.last = seen
	return queued
}

func (d *Dispatcher) submit(ev types.SignalEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.pending <- ev:
		return true
	default:
		d.opts.Metrics.Dispatches.WithLabelValues("dropped").Inc()
		d.log.Warn("⚠️  Actuator busy, dropping command", zap.Stringer("box", ev.Box))
		return false
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for ev := range d.pending {
		d.send(ev)
	}
}

func (d *Dispatcher) send(ev types.SignalEvent) {
	ctx := context.Background()
	if err := d.actuator.Send(ctx, ev); err != nil {
		d.log.Error("🚨 Failed to signal actuator, continuing", zap.String("command", ev.Command), zap.Error(err))
		ev.Simulated = true
	}
	if ev.Simulated {
		d.opts.Metrics.Dispatches.WithLabelValues("simulated").Inc()
	} else {
		d.opts.Metrics.Dispatches.WithLabelValues("sent").Inc()
		d.log.Info("🔓 Signal sent", zap.String("command", ev.Command), zap.Stringer("box", ev.Box))
	}

	if d.opts.Recorder != nil {
		if err := d.opts.Recorder.RecordEvent(ctx, ev); err != nil {
			d.log.Warn("failed to record access event", zap.Error(err))
		}
	}
}

// Close stops accepting commands, waits for queued ones to be sent and closes
// the actuator. Further calls return the first result.
func (d *Dispatcher) Close() error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.pending)
		d.mu.Unlock()

		<-d.done
		d.err = d.actuator.Close()
	})
	return d.err
}
