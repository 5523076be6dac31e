//go:build !debug

package channel

// New creates a new channel with the given buffer size.
// Production builds return a buffered channel so device callbacks never wait on a slow consumer.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
