// Package channel provides generic channel wrappers for handing values between
// goroutines that may stop listening at any time.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// SendOrDone blocks until v is accepted or done is closed.
	// It reports whether v was accepted.
	SendOrDone(v T, done <-chan struct{}) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

func sendOrDone[T any](ch chan T, v T, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
	}
	select {
	case ch <- v:
		return true
	case <-done:
		return false
	}
}
