package compare

import (
	"context"
	"errors"
	"image"
	"sync"
)

const InitialSplit = 50.0

var (
	ErrNoDownload = errors.New("no download handler configured")
	ErrNotReady   = errors.New("comparison images are still loading")
)

// FrameScheduler runs fn on the next display frame.
type FrameScheduler interface {
	RequestFrame(fn func())
}

type ImageLoader interface {
	LoadImage(ctx context.Context, ref string) (image.Image, error)
}

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseIdle
	PhaseDragging
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	default:
		return "loading"
	}
}

// Bounds is the widget's horizontal extent in pointer coordinates.
type Bounds struct {
	Left  float64
	Width float64
}

type State struct {
	Phase      Phase
	Split      float64
	Dragging   bool
	Fullscreen bool
	Ready      bool
	BeforeErr  error
	AfterErr   error
}

type Config struct {
	BeforeURL  string
	AfterURL   string
	Frames     FrameScheduler
	Bounds     Bounds
	OnDownload func(afterURL string) error
}

// Widget is a before/after split view. The before image is revealed from
// the left edge up to Split percent; the after image fills the whole area.
type Widget struct {
	mu         sync.Mutex
	cfg        Config
	split      float64
	dragging   bool
	fullscreen bool
	ready      bool
	mounted    bool
	before     image.Image
	after      image.Image
	beforeErr  error
	afterErr   error

	pendingX     float64
	framePending bool
	readyCh      chan struct{}
}

func New(cfg Config) *Widget {
	if cfg.Frames == nil {
		cfg.Frames = Immediate{}
	}
	return &Widget{
		cfg:     cfg,
		split:   InitialSplit,
		mounted: true,
		readyCh: make(chan struct{}),
	}
}

// Preload fetches both images concurrently. The widget becomes ready once
// both have settled, failed loads included. Results arriving after Unmount
// are dropped.
func (w *Widget) Preload(ctx context.Context, loader ImageLoader) {
	var wg sync.WaitGroup
	load := func(ref string, assign func(image.Image, error)) {
		defer wg.Done()
		img, err := loader.LoadImage(ctx, ref)
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.mounted {
			return
		}
		assign(img, err)
	}

	wg.Add(2)
	go load(w.cfg.BeforeURL, func(img image.Image, err error) { w.before, w.beforeErr = img, err })
	go load(w.cfg.AfterURL, func(img image.Image, err error) { w.after, w.afterErr = img, err })

	go func() {
		wg.Wait()
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.mounted || w.ready {
			return
		}
		w.ready = true
		close(w.readyCh)
	}()
}

// WaitReady blocks until both images settled or ctx ends.
func (w *Widget) WaitReady(ctx context.Context) error {
	select {
	case <-w.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := State{
		Split:      w.split,
		Dragging:   w.dragging,
		Fullscreen: w.fullscreen,
		Ready:      w.ready,
		BeforeErr:  w.beforeErr,
		AfterErr:   w.afterErr,
	}
	switch {
	case !w.ready:
		s.Phase = PhaseLoading
	case w.dragging:
		s.Phase = PhaseDragging
	default:
		s.Phase = PhaseIdle
	}
	return s
}

func (w *Widget) Split() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.split
}

// PointerDown starts a drag at x. Ignored while loading.
func (w *Widget) PointerDown(x float64) {
	w.mu.Lock()
	if !w.ready || !w.mounted {
		w.mu.Unlock()
		return
	}
	w.dragging = true
	w.mu.Unlock()
	w.PointerMove(x)
}

// PointerMove records the latest position while dragging. Moves arriving
// before the scheduled frame runs collapse into one update.
func (w *Widget) PointerMove(x float64) {
	w.mu.Lock()
	if !w.dragging || !w.mounted {
		w.mu.Unlock()
		return
	}
	w.pendingX = x
	if w.framePending {
		w.mu.Unlock()
		return
	}
	w.framePending = true
	w.mu.Unlock()

	w.cfg.Frames.RequestFrame(w.applyFrame)
}

func (w *Widget) PointerUp() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dragging = false
}

func (w *Widget) applyFrame() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.framePending = false
	if !w.mounted {
		return
	}
	if b := w.cfg.Bounds; b.Width > 0 {
		w.split = Clamp((w.pendingX - b.Left) / b.Width * 100)
	}
}

// SetSplit moves the divider directly, as keyboard control does.
func (w *Widget) SetSplit(pct float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.ready {
		return
	}
	w.split = Clamp(pct)
}

// ToggleFullscreen flips the view mode only; split and images are kept.
func (w *Widget) ToggleFullscreen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ready {
		w.fullscreen = !w.fullscreen
	}
	return w.fullscreen
}

// Download hands the after-image URL to the configured callback.
func (w *Widget) Download() error {
	if w.cfg.OnDownload == nil {
		return ErrNoDownload
	}
	return w.cfg.OnDownload(w.cfg.AfterURL)
}

func (w *Widget) Unmount() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mounted = false
	w.dragging = false
}

func Clamp(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
