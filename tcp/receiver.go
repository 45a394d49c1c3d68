package tcp

// Receiver consumes inbound segments, translates wire sequence numbers to
// stream indices, feeds a [Reassembler], and advertises a receive window
// to the peer.
type Receiver struct {
	isn         Value
	synReceived bool
	finReceived bool
	base        uint64 // absolute next-expected wire seqno; the unwrap checkpoint.
	reassembler *Reassembler
	output      *ByteStream
}

// NewReceiver returns a Receiver whose reassembled bytes accumulate in a
// byte stream of the given capacity.
func NewReceiver(capacity int) *Receiver {
	out := NewByteStream(capacity)
	return &Receiver{
		reassembler: NewReassembler(out),
		output:      out,
	}
}

// SegmentReceived processes an inbound segment and reports whether it was
// acceptable in the RFC 9293 sense. An unacceptable segment leaves the
// receiver's state unchanged (e.g. a duplicate SYN is simply rejected), and
// a caller should treat false as "prod the peer with our current ACK".
func (r *Receiver) SegmentReceived(seg *Segment) bool {
	synInThisSegment := seg.Flags.HasAny(FlagSYN)

	if synInThisSegment {
		if r.synReceived {
			return false
		}
		r.synReceived = true
		r.isn = seg.SEQ
		r.base = 1
	} else if !r.synReceived {
		return false
	}

	abs := Unwrap(seg.SEQ, r.isn, r.base)
	firstIndex := abs - 1
	if synInThisSegment {
		firstIndex++
	}

	finInThisSegment := seg.Flags.HasAny(FlagFIN)
	if finInThisSegment {
		if r.finReceived {
			return false
		}
		r.finReceived = true
	}

	length := Size(len(seg.Payload))
	windowLo := r.base
	windowHi := r.base + uint64(r.WindowSize())
	acceptable := synInThisSegment || finInThisSegment ||
		(length == 0 && abs == r.base) ||
		(abs < windowHi && abs+uint64(length) > windowLo)
	if !acceptable {
		if finInThisSegment {
			r.finReceived = false
		}
		return false
	}

	r.reassembler.PushSubstring(seg.Payload, firstIndex, finInThisSegment)

	r.base = 1 + r.reassembler.HeadIndex()
	if r.output.InputEnded() && r.reassembler.Empty() {
		r.base++
	}
	return true
}

// Ackno returns the next wire sequence number we expect from the peer,
// valid once the SYN has been received.
func (r *Receiver) Ackno() (Value, bool) {
	if !r.synReceived {
		return 0, false
	}
	return Wrap(r.base, r.isn), true
}

// WindowSize is the number of additional bytes the receiver is currently
// willing to accept.
func (r *Receiver) WindowSize() Size { return Size(r.output.RemainingCapacity()) }

// Output is the byte stream the application reads assembled data from.
func (r *Receiver) Output() *ByteStream { return r.output }

// SynReceived reports whether the connection's SYN has arrived.
func (r *Receiver) SynReceived() bool { return r.synReceived }

// FinReceived reports whether the connection's FIN has arrived.
func (r *Receiver) FinReceived() bool { return r.finReceived }
