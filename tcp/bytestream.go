package tcp

import "github.com/loopstack/mintcp/internal"

// ByteStream is a bounded FIFO of bytes with backpressure: writes beyond
// the configured capacity are silently truncated rather than rejected, and
// the reader observes end-of-stream only once every written byte has been
// read back. It is not safe for concurrent use; a ByteStream has a single
// writer and a single reader, coordinated by whatever owns the connection.
type ByteStream struct {
	ring         internal.Ring
	bytesWritten uint64
	bytesRead    uint64
	inputEnded   bool
	hasError     bool
}

// NewByteStream returns a ByteStream that holds up to capacity bytes.
func NewByteStream(capacity int) *ByteStream {
	return &ByteStream{ring: internal.Ring{Buf: make([]byte, capacity)}}
}

// Write appends as many leading bytes of b as fit in the remaining
// capacity and returns how many were accepted. It never errors and does
// not check EndInput: callers that continue writing after EndInput get
// truncation (remaining capacity shrinks to 0 only once the buffer fills),
// not a rejection, exactly like every other boundary in this type.
func (bs *ByteStream) Write(b []byte) (accepted int) {
	free := bs.ring.Free()
	if free == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > free {
		b = b[:free]
	}
	n, err := bs.ring.Write(b)
	if err != nil {
		return 0
	}
	bs.bytesWritten += uint64(n)
	return n
}

// Peek returns up to n bytes from the head of the stream without removing
// them.
func (bs *ByteStream) Peek(n int) []byte {
	buffered := bs.ring.Buffered()
	if n > buffered {
		n = buffered
	}
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	nr, _ := bs.ring.ReadPeek(out)
	return out[:nr]
}

// Pop discards up to n bytes from the head of the stream and returns how
// many were actually discarded.
func (bs *ByteStream) Pop(n int) int {
	buffered := bs.ring.Buffered()
	if n > buffered {
		n = buffered
	}
	if n == 0 {
		return 0
	}
	if err := bs.ring.ReadDiscard(n); err != nil {
		return 0
	}
	bs.bytesRead += uint64(n)
	return n
}

// Read is Peek followed by Pop of the same count.
func (bs *ByteStream) Read(n int) []byte {
	b := bs.Peek(n)
	bs.Pop(len(b))
	return b
}

// EndInput marks that no more bytes will be written. Already-buffered
// bytes remain readable; EOF is only reached once they are all read.
func (bs *ByteStream) EndInput() { bs.inputEnded = true }

// SetError marks the stream as broken, for diagnostic observation by the
// owner; it does not itself stop reads or writes.
func (bs *ByteStream) SetError() { bs.hasError = true }

// InputEnded reports whether EndInput has been called.
func (bs *ByteStream) InputEnded() bool { return bs.inputEnded }

// Error reports whether SetError has been called.
func (bs *ByteStream) Error() bool { return bs.hasError }

// BytesWritten is the cumulative count of bytes accepted by Write.
func (bs *ByteStream) BytesWritten() uint64 { return bs.bytesWritten }

// BytesRead is the cumulative count of bytes removed by Pop/Read.
func (bs *ByteStream) BytesRead() uint64 { return bs.bytesRead }

// BufferSize is the number of bytes currently buffered and unread.
func (bs *ByteStream) BufferSize() int { return bs.ring.Buffered() }

// RemainingCapacity is how many more bytes Write can currently accept.
func (bs *ByteStream) RemainingCapacity() int { return bs.ring.Free() }

// Capacity is the total configured size of the stream.
func (bs *ByteStream) Capacity() int { return bs.ring.Size() }

// EOF reports whether input has ended and every written byte has been
// read.
func (bs *ByteStream) EOF() bool { return bs.inputEnded && bs.ring.Buffered() == 0 }
