package dedupe

// DefaultWindow is the number of timestamps remembered by default.
const DefaultWindow = 64

// Option configures a window deduper.
type Option func(*windowDeduper)

// WithWindow sets how many recent keys are remembered. Values below one are
// treated as one, which degrades to "differs from the previous key".
func WithWindow(n int) Option {
	return func(d *windowDeduper) {
		d.window = n
	}
}
