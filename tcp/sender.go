package tcp

// MSS bounds the payload length of any single segment emitted by a
// Sender.
const MSS = 1452

// outstandingSegment pairs a sent segment with its absolute sequence
// number, since the wire SEQ has already been wrapped relative to isn by
// the time it sits in the outstanding queue.
type outstandingSegment struct {
	seg Segment
	abs uint64
}

// Sender pulls from an outbound byte stream and emits segments honoring
// the peer's advertised window, tracking in-flight bytes and driving a
// single retransmission timer with exponential backoff.
type Sender struct {
	isn Value

	stream *ByteStream

	nextSeqno   uint64 // absolute; bytes of sequence space emitted so far.
	recvAckno   uint64 // absolute; highest ackno seen from the peer.
	windowSize  Size   // peer-advertised window, most recently observed.
	windowKnown bool   // true once any ack has reported windowSize; distinguishes a genuine zero window from "no ack yet".
	synSent     bool
	finSent     bool

	outstanding   []outstandingSegment
	bytesInFlight Size

	initialRTO      int
	rto             int
	timerRunning    bool
	elapsed         int
	consecutiveRetx int

	outbox []Segment
}

// NewSender returns a Sender with the given outbound capacity, initial
// sequence number, and initial retransmission timeout in milliseconds.
func NewSender(capacity int, isn Value, rtoMs int) *Sender {
	return &Sender{
		isn:        isn,
		stream:     NewByteStream(capacity),
		initialRTO: rtoMs,
		rto:        rtoMs,
	}
}

// Stream is the outbound byte stream the application writes to.
func (s *Sender) Stream() *ByteStream { return s.stream }

// NextSeqno is the absolute index of the next byte of sequence space this
// sender will emit.
func (s *Sender) NextSeqno() uint64 { return s.nextSeqno }

// BytesInFlight is the sum of sequence-space lengths of every segment in
// the outstanding queue.
func (s *Sender) BytesInFlight() Size { return s.bytesInFlight }

// SynSent reports whether this sender has emitted its SYN.
func (s *Sender) SynSent() bool { return s.synSent }

// FinSent reports whether this sender has emitted its FIN.
func (s *Sender) FinSent() bool { return s.finSent }

// ConsecutiveRetx is the number of back-to-back retransmission timeouts
// observed since the last new byte was acknowledged.
func (s *Sender) ConsecutiveRetx() int { return s.consecutiveRetx }

// Outbox drains and returns every segment queued for transmission since
// the last call.
func (s *Sender) Outbox() []Segment {
	if len(s.outbox) == 0 {
		return nil
	}
	out := s.outbox
	s.outbox = nil
	return out
}

// PendingOutbox reports whether Outbox would currently return anything.
func (s *Sender) PendingOutbox() bool { return len(s.outbox) > 0 }

// FillWindow pushes segments onto the outbound queue until the peer's
// window is full, the outbound stream has nothing left to send, or FIN
// has already been sent. sendSyn requests the initial SYN be emitted if
// it has not been already.
func (s *Sender) FillWindow(sendSyn bool) {
	if !s.synSent {
		if !sendSyn {
			return
		}
		s.sendSegment(&Segment{Flags: FlagSYN})
		return
	}

	effectiveWindow := s.windowSize
	if effectiveWindow == 0 {
		effectiveWindow = 1
	}

	for {
		inFlight := Size(s.nextSeqno - s.recvAckno)
		if inFlight >= effectiveWindow {
			return
		}
		room := effectiveWindow - inFlight
		if s.finSent {
			return
		}

		payloadCap := room
		if payloadCap > MSS {
			payloadCap = MSS
		}
		payload := s.stream.Read(int(payloadCap))

		seg := Segment{Payload: payload}
		atEOF := s.stream.EOF()
		if atEOF && seg.LEN()+1 <= room {
			seg.Flags |= FlagFIN
		}
		if seg.LEN() == 0 {
			return
		}
		if seg.Flags.HasAny(FlagFIN) {
			s.finSent = true
		}
		s.sendSegment(&seg)
	}
}

// sendSegment stamps seg with the next wire sequence number, accounts for
// it in bytes_in_flight and the outstanding queue, enqueues it for
// transmission, and starts the retransmission timer if it is not already
// running.
func (s *Sender) sendSegment(seg *Segment) {
	seg.SEQ = Wrap(s.nextSeqno, s.isn)
	length := seg.LEN()

	abs := s.nextSeqno
	s.nextSeqno += uint64(length)
	s.bytesInFlight += length
	if seg.Flags.HasAny(FlagSYN) {
		s.synSent = true
	}

	s.outstanding = append(s.outstanding, outstandingSegment{seg: *seg, abs: abs})
	s.outbox = append(s.outbox, *seg)

	if !s.timerRunning {
		s.timerRunning = true
		s.elapsed = 0
	}
}

// AckReceived processes an ACK from the peer and reports whether it was
// valid (acknowledges no more than has actually been sent).
func (s *Sender) AckReceived(ackno Value, win Size) bool {
	abs := Unwrap(ackno, s.isn, s.recvAckno)
	if abs > s.nextSeqno {
		return false
	}
	s.windowSize = win
	s.windowKnown = true
	if abs <= s.recvAckno {
		return true
	}

	s.recvAckno = abs
	kept := s.outstanding[:0]
	for _, o := range s.outstanding {
		if o.abs+uint64(o.seg.LEN()) <= abs {
			s.bytesInFlight -= o.seg.LEN()
			continue
		}
		kept = append(kept, o)
	}
	s.outstanding = kept

	s.rto = s.initialRTO
	s.consecutiveRetx = 0
	if len(s.outstanding) > 0 {
		s.timerRunning = true
		s.elapsed = 0
	} else {
		s.timerRunning = false
	}

	s.FillWindow(false)
	return true
}

// Tick advances the retransmission timer by deltaMs milliseconds,
// retransmitting the earliest outstanding segment and backing off RTO
// when it fires, except while probing a zero window.
func (s *Sender) Tick(deltaMs int) {
	if !s.timerRunning {
		return
	}
	s.elapsed += deltaMs
	if s.elapsed < s.rto {
		return
	}
	if len(s.outstanding) == 0 {
		s.timerRunning = false
		return
	}

	s.outbox = append(s.outbox, s.outstanding[0].seg)
	if !s.windowKnown || s.windowSize > 0 {
		s.consecutiveRetx++
		s.rto *= 2
	}
	s.elapsed = 0
}

// SendEmptySegment emits a zero-sequence-space segment at seqno (the
// current next_seqno if unset), bypassing the outstanding queue: it is
// never retransmitted.
func (s *Sender) SendEmptySegment(seqno ...Value) {
	v := Wrap(s.nextSeqno, s.isn)
	if len(seqno) > 0 {
		v = seqno[0]
	}
	s.outbox = append(s.outbox, Segment{SEQ: v})
}
