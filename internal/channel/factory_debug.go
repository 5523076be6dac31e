//go:build debug

package channel

// New creates a new channel.
// Debug builds return an unbuffered channel (size is ignored) so every reading
// is handed over synchronously and ordering problems surface early.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
