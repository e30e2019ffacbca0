package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/andresmejia3/facegate/internal/metrics"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeActuator struct {
	mu     sync.Mutex
	sent   []types.SignalEvent
	err    error
	closes int
	block  chan struct{}
}

func (f *fakeActuator) Send(ctx context.Context, ev types.SignalEvent) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeActuator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeActuator) Sent() []types.SignalEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.SignalEvent(nil), f.sent...)
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []types.SignalEvent
	err    error
}

func (r *fakeRecorder) RecordEvent(ctx context.Context, ev types.SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

var (
	door   = types.BoundingBox{X: 10, Y: 10, W: 50, H: 50}
	window = types.BoundingBox{X: 200, Y: 10, W: 50, H: 50}
)

func newDispatcher(t *testing.T, act Actuator, opts Options) *Dispatcher {
	opts.Logger = zaptest.NewLogger(t)
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return New(act, opts)
}

func TestObserveSendsForRecognizedOnly(t *testing.T) {
	act := &fakeActuator{}
	d := newDispatcher(t, act, Options{})

	n := d.Observe([]types.Annotation{
		{Box: door, Verdict: types.Recognized},
		{Box: window, Verdict: types.NotRecognized},
		{Box: types.BoundingBox{X: 400}, Verdict: types.Pending},
	})
	require.NoError(t, d.Close())

	assert.Equal(t, 1, n)
	sent := act.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "OPEN", sent[0].Command)
	assert.Equal(t, door, sent[0].Box)
	assert.Equal(t, d.Session(), sent[0].Session)
	assert.False(t, sent[0].Simulated)
}

func TestObserveLevelTriggeredRepeatsEveryCycle(t *testing.T) {
	act := &fakeActuator{}
	d := newDispatcher(t, act, Options{Command: "UNLOCK", Buffer: 16})

	for i := 0; i < 3; i++ {
		d.Observe([]types.Annotation{{Box: door, Verdict: types.Recognized}})
	}
	require.NoError(t, d.Close())

	sent := act.Sent()
	assert.Len(t, sent, 3)
	for _, ev := range sent {
		assert.Equal(t, "UNLOCK", ev.Command)
	}
}

func TestObserveEdgeTriggered(t *testing.T) {
	act := &fakeActuator{}
	d := newDispatcher(t, act, Options{EdgeTriggered: true, Buffer: 16})

	cycles := [][]types.Annotation{
		{{Box: door, Verdict: types.Pending}},
		{{Box: door, Verdict: types.Recognized}},
		{{Box: door, Verdict: types.Recognized}},
		{},
		{{Box: door, Verdict: types.Recognized}},
	}
	want := []int{0, 1, 0, 0, 1}
	for i, faces := range cycles {
		assert.Equal(t, want[i], d.Observe(faces), "cycle %d", i)
	}
	require.NoError(t, d.Close())
	assert.Len(t, act.Sent(), 2)
}

func TestActuatorFailureIsRecordedAsSimulated(t *testing.T) {
	act := &fakeActuator{err: errors.New("port unplugged")}
	rec := &fakeRecorder{}
	m := metrics.New()
	d := newDispatcher(t, act, Options{Recorder: rec, Metrics: m})

	d.Observe([]types.Annotation{{Box: door, Verdict: types.Recognized}})
	require.NoError(t, d.Close())

	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].Simulated)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("simulated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("sent")))
}

func TestRecorderFailureIsIgnored(t *testing.T) {
	act := &fakeActuator{}
	rec := &fakeRecorder{err: errors.New("db down")}
	d := newDispatcher(t, act, Options{Recorder: rec})

	d.Observe([]types.Annotation{{Box: door, Verdict: types.Recognized}})
	require.NoError(t, d.Close())
	assert.Len(t, act.Sent(), 1)
}

func TestObserveDropsWhenActuatorBusy(t *testing.T) {
	act := &fakeActuator{block: make(chan struct{})}
	m := metrics.New()
	d := newDispatcher(t, act, Options{Buffer: 1, Metrics: m})

	total := 0
	for i := 0; i < 5; i++ {
		total += d.Observe([]types.Annotation{{Box: door, Verdict: types.Recognized}})
	}
	// At most one command in the sender and one in the buffer.
	assert.LessOrEqual(t, total, 2)
	assert.Equal(t, float64(5-total), testutil.ToFloat64(m.Dispatches.WithLabelValues("dropped")))

	close(act.block)
	require.NoError(t, d.Close())
	assert.Len(t, act.Sent(), total)
}

func TestCloseIsIdempotent(t *testing.T) {
	act := &fakeActuator{}
	d := newDispatcher(t, act, Options{})

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, act.closes)
	assert.Equal(t, 0, d.Observe([]types.Annotation{{Box: door, Verdict: types.Recognized}}))
}

func TestSimulatedActuatorMarksEvents(t *testing.T) {
	rec := &fakeRecorder{}
	d := newDispatcher(t, NewSimulated(zaptest.NewLogger(t)), Options{Recorder: rec})

	d.Observe([]types.Annotation{{Box: door, Verdict: types.Recognized}})
	require.NoError(t, d.Close())

	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].Simulated)
}
