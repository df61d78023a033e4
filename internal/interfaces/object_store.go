package interfaces

import "context"

// ObjectStore is the content-addressed document bucket. Implementations are
// immutable singletons after initialization. When initialization failed the
// store reports Enabled() == false and every Upload returns false, letting
// the downloader record partial status and defer uploads.
type ObjectStore interface {
	Enabled() bool
	Upload(ctx context.Context, path string, data []byte) bool
	Delete(ctx context.Context, path string) bool
	URLFor(path string) string
}
