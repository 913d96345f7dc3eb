package browser

import "context"

// CombineContext derives a context from primary that is canceled when either
// primary or secondary is done. chromedp contexts carry the CDP target in
// their values, so the combined context must inherit from the session
// context (primary) while still honoring the caller's deadline (secondary).
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
