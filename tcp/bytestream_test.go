package tcp_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/loopstack/mintcp/tcp"
)

func TestByteStream_writeReadRoundTrip(t *testing.T) {
	bs := tcp.NewByteStream(16)
	n := bs.Write([]byte("hello"))
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}
	if bs.BufferSize() != 5 {
		t.Fatalf("BufferSize() = %d, want 5", bs.BufferSize())
	}
	got := bs.Read(5)
	if string(got) != "hello" {
		t.Fatalf("Read() = %q, want %q", got, "hello")
	}
	if bs.BufferSize() != 0 {
		t.Fatalf("BufferSize() after read = %d, want 0", bs.BufferSize())
	}
}

func TestByteStream_writeTruncatesSilently(t *testing.T) {
	bs := tcp.NewByteStream(4)
	n := bs.Write([]byte("abcdefgh"))
	if n != 4 {
		t.Fatalf("Write returned %d, want 4", n)
	}
	if bs.RemainingCapacity() != 0 {
		t.Fatalf("RemainingCapacity() = %d, want 0", bs.RemainingCapacity())
	}
	if string(bs.Peek(4)) != "abcd" {
		t.Fatalf("Peek(4) = %q, want %q", bs.Peek(4), "abcd")
	}
}

func TestByteStream_eof(t *testing.T) {
	bs := tcp.NewByteStream(8)
	bs.Write([]byte("hi"))
	bs.EndInput()
	if bs.EOF() {
		t.Fatal("EOF() true before buffered bytes drained")
	}
	bs.Pop(2)
	if !bs.EOF() {
		t.Fatal("EOF() false after input ended and buffer drained")
	}
}

func TestByteStream_randomWriteReadPreservesOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const capacity = 4096
	var want bytes.Buffer
	bs := tcp.NewByteStream(capacity)

	for i := 0; i < 500; i++ {
		switch {
		case rng.Intn(3) != 0 && want.Len() < capacity:
			chunk := make([]byte, 1+rng.Intn(64))
			rng.Read(chunk)
			n := bs.Write(chunk)
			want.Write(chunk[:n])
		case bs.BufferSize() > 0:
			n := 1 + rng.Intn(bs.BufferSize())
			got := bs.Read(n)
			wantChunk := want.Next(len(got))
			if !bytes.Equal(got, wantChunk) {
				t.Fatalf("iteration %d: Read() = %x, want %x", i, got, wantChunk)
			}
		}
		if uint64(bs.BufferSize()) != bs.BytesWritten()-bs.BytesRead() {
			t.Fatalf("iteration %d: buffer_size invariant violated", i)
		}
	}
}
