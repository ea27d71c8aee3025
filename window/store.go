package window

import "context"

// Store persists configured windows.
type Store interface {
	ListWindows(ctx context.Context) ([]*Window, error)
	PutWindow(ctx context.Context, w *Window) error
}
