package compare

// Immediate runs frame callbacks synchronously. Suitable for discrete
// command-driven input where every event is its own frame.
type Immediate struct{}

func (Immediate) RequestFrame(fn func()) { fn() }
