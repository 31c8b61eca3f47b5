package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/decibender/internal/types"
	"github.com/dooshek/decibender/internal/watch"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

type reaction struct {
	name      string
	direction types.Direction
}

type recordingReactor struct {
	calls chan reaction
}

func newRecordingReactor() *recordingReactor {
	return &recordingReactor{calls: make(chan reaction, 64)}
}

func (r *recordingReactor) EnteredTooLoud()    { r.calls <- reaction{name: "too_loud"} }
func (r *recordingReactor) EnteredTooQuiet()   { r.calls <- reaction{name: "too_quiet"} }
func (r *recordingReactor) EnteredAcceptable() { r.calls <- reaction{name: "acceptable"} }
func (r *recordingReactor) ThresholdsAdjusted(d types.Direction) {
	r.calls <- reaction{name: "adjusted", direction: d}
}

func (r *recordingReactor) next(t *testing.T) reaction {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(waitFor):
		t.Fatal("no reaction dispatched")
		return reaction{}
	}
}

func (r *recordingReactor) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-r.calls:
		t.Fatalf("unexpected reaction %+v", c)
	default:
	}
}

type recordingSink struct {
	loudness   chan float64
	states     chan types.State
	thresholds chan types.Thresholds
	err        error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		loudness:   make(chan float64, 64),
		states:     make(chan types.State, 64),
		thresholds: make(chan types.Thresholds, 64),
	}
}

func (s *recordingSink) OnLoudness(db float64) error {
	s.loudness <- db
	return s.err
}

func (s *recordingSink) OnStateChanged(state types.State) error {
	s.states <- state
	return nil
}

func (s *recordingSink) OnThresholds(t types.Thresholds) error {
	s.thresholds <- t
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t          *testing.T
	controller *Controller
	loudness   *watch.Value[float64]
	thresholds *watch.Value[types.Thresholds]
	window     *watch.Value[float64]
	reactor    *recordingReactor
	sink       *recordingSink
	clock      *fakeClock
	errs       chan error
	cancel     context.CancelFunc
}

func startHarness(t *testing.T, initial types.Thresholds) *harness {
	t.Helper()

	h := &harness{
		t:          t,
		loudness:   watch.New(-60.0),
		thresholds: watch.New(initial),
		window:     watch.New(3.0),
		reactor:    newRecordingReactor(),
		sink:       newRecordingSink(),
		clock:      &fakeClock{now: time.Unix(1700000000, 0)},
		errs:       make(chan error, 1),
	}
	h.controller = NewController(h.loudness, h.thresholds, h.window, h.reactor, Options{
		GracePeriod: 7 * time.Second,
		StepDB:      6,
		Now:         h.clock.Now,
	})
	h.controller.AddSink(h.sink)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errs <- h.controller.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.errs
	})

	require.Equal(t, initial, h.nextThresholds())
	require.Equal(t, reaction{name: "adjusted", direction: types.DirectionUnchanged}, h.reactor.next(t))
	return h
}

// feed publishes one reading and waits until the controller has seen it.
func (h *harness) feed(db float64) {
	h.t.Helper()
	h.loudness.Store(db)
	select {
	case got := <-h.sink.loudness:
		require.Equal(h.t, db, got)
	case <-time.After(waitFor):
		h.t.Fatal("loudness not observed")
	}
}

func (h *harness) submit(cmd types.Command) {
	h.t.Helper()
	require.NoError(h.t, h.controller.Submit(context.Background(), cmd))
}

func (h *harness) nextThresholds() types.Thresholds {
	h.t.Helper()
	select {
	case got := <-h.sink.thresholds:
		return got
	case <-time.After(waitFor):
		h.t.Fatal("thresholds not echoed")
		return types.Thresholds{}
	}
}

func TestControllerScenario(t *testing.T) {
	h := startHarness(t, types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6})

	readings := []float64{-60, -60, -25, -25, -40, -40, -80}
	want := []types.State{
		types.StateAcceptable,
		types.StateAcceptable,
		types.StateTooLoud,
		types.StateTooLoud,
		types.StateAcceptable,
		types.StateAcceptable,
		types.StateTooQuiet,
	}

	var got []types.State
	for _, db := range readings {
		h.feed(db)
		got = append(got, h.controller.State())
	}
	require.Equal(t, want, got)

	require.Equal(t, "too_loud", h.reactor.next(t).name)
	require.Equal(t, "acceptable", h.reactor.next(t).name)
	require.Equal(t, "too_quiet", h.reactor.next(t).name)
	h.reactor.none(t)

	require.Equal(t, types.StateTooLoud, <-h.sink.states)
	require.Equal(t, types.StateAcceptable, <-h.sink.states)
	require.Equal(t, types.StateTooQuiet, <-h.sink.states)
}

func TestControllerGracePeriodSuppressesTransitions(t *testing.T) {
	h := startHarness(t, types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6})

	h.submit(types.Quieter())
	require.Equal(t, types.Thresholds{TooLoud: -36, TooQuiet: -86, Grace: 6}, h.nextThresholds())
	require.Equal(t, reaction{name: "adjusted", direction: types.DirectionQuieter}, h.reactor.next(t))

	h.feed(-10)
	h.clock.Advance(6 * time.Second)
	h.feed(-10)
	require.Equal(t, types.StateAcceptable, h.controller.State())
	h.reactor.none(t)

	h.clock.Advance(2 * time.Second)
	h.feed(-10)
	require.Equal(t, types.StateTooLoud, h.controller.State())
	require.Equal(t, "too_loud", h.reactor.next(t).name)
}

func TestControllerLouderShiftsBoth(t *testing.T) {
	h := startHarness(t, types.Thresholds{TooLoud: -35, TooQuiet: -75, Grace: 6})

	h.submit(types.Louder())
	require.Equal(t, types.Thresholds{TooLoud: -29, TooQuiet: -69, Grace: 6}, h.nextThresholds())
	require.Equal(t, reaction{name: "adjusted", direction: types.DirectionLouder}, h.reactor.next(t))
	require.Equal(t, types.Thresholds{TooLoud: -29, TooQuiet: -69, Grace: 6}, h.controller.Thresholds())
}

func TestControllerIdenticalThresholdsStillDispatch(t *testing.T) {
	initial := types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6}
	h := startHarness(t, initial)

	h.submit(types.SetThresholds(initial))
	require.Equal(t, initial, h.nextThresholds())
	require.Equal(t, reaction{name: "adjusted", direction: types.DirectionUnchanged}, h.reactor.next(t))

	// The grace period restarted too.
	h.feed(-10)
	require.Equal(t, types.StateAcceptable, h.controller.State())
}

func TestControllerConfigChangeAloneNeverTransitions(t *testing.T) {
	h := startHarness(t, types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6})
	h.feed(-50)

	// -50 is now above too_loud, but only a new reading may transition.
	h.submit(types.SetThresholds(types.Thresholds{TooLoud: -55, TooQuiet: -90, Grace: 6}))
	h.nextThresholds()
	require.Equal(t, reaction{name: "adjusted", direction: types.DirectionQuieter}, h.reactor.next(t))
	h.reactor.none(t)
	require.Equal(t, types.StateAcceptable, h.controller.State())
}

func TestControllerRejectsInvalidCommands(t *testing.T) {
	initial := types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6}
	h := startHarness(t, initial)

	h.submit(types.SetThresholds(types.Thresholds{TooLoud: -90, TooQuiet: -20, Grace: 6}))
	h.submit(types.SetWindowSeconds(42))
	h.submit(types.SetWindowSeconds(1.5))

	require.Eventually(t, func() bool { return h.window.Load() == 1.5 }, waitFor, 5*time.Millisecond)
	require.Equal(t, initial, h.thresholds.Load())
	h.reactor.none(t)
}

func TestControllerStopsOnSinkError(t *testing.T) {
	loudness := watch.New(-60.0)
	sink := newRecordingSink()
	sink.err = errors.New("window closed")

	c := NewController(loudness, watch.New(types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6}), watch.New(3.0), newRecordingReactor(), Options{StepDB: 6})
	c.AddSink(sink)

	errs := make(chan error, 1)
	go func() { errs <- c.Run(context.Background()) }()

	<-sink.thresholds
	loudness.Store(-40)

	select {
	case err := <-errs:
		require.ErrorContains(t, err, "window closed")
	case <-time.After(waitFor):
		t.Fatal("controller kept running after sink failure")
	}
}
