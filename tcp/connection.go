package tcp

import (
	"crypto/rand"
	"errors"
	"log/slog"
)

var errRetransmissionsExhausted = errors.New("tcp: exceeded max consecutive retransmissions")

// MaxRetxAttempts bounds the number of consecutive retransmission
// timeouts a Connection tolerates before giving up and resetting.
const MaxRetxAttempts = 8

// LingerMultiplier governs how long a Connection that has closed cleanly
// lingers (as a multiple of the sender's initial RTO) to field the peer's
// retransmissions, analogous to TIME-WAIT.
const LingerMultiplier = 10

// Config configures a new [Connection].
type Config struct {
	RecvCapacity int    // receiver byte stream / reassembler capacity, in bytes.
	SendCapacity int    // sender outbound byte stream capacity, in bytes.
	RTOMillis    int    // initial retransmission timeout, in milliseconds.
	FixedISN     *Value // deterministic ISN, for tests; nil picks one at random.
	Logger       *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.RecvCapacity == 0 {
		c.RecvCapacity = 64000
	}
	if c.SendCapacity == 0 {
		c.SendCapacity = 64000
	}
	if c.RTOMillis == 0 {
		c.RTOMillis = 1000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Connection composes a [Sender] and [Receiver] into the RFC 9293
// connection lifecycle: handshake, data transfer, clean and abortive
// shutdown. It never stores a discrete connection-state value — [Connection.State]
// derives the observed state from the sender and receiver's own fields on
// every call, so the state can never drift out of sync with what the
// sender and receiver actually believe.
type Connection struct {
	sender   *Sender
	receiver *Receiver

	active                   bool
	lingerAfterStreamsFinish bool
	needSendRst              bool

	timeSinceLastSegmentReceived int

	outbox []Segment

	log *slog.Logger
}

// NewConnection returns an active Connection ready to either Connect() as
// the active opener or receive an inbound SYN as the passive opener.
func NewConnection(cfg Config) *Connection {
	cfg = cfg.withDefaults()
	isn := cfg.FixedISN
	if isn == nil {
		v := randomISN()
		isn = &v
	}
	return &Connection{
		sender:                   NewSender(cfg.SendCapacity, *isn, cfg.RTOMillis),
		receiver:                 NewReceiver(cfg.RecvCapacity),
		active:                   true,
		lingerAfterStreamsFinish: true,
		log:                      cfg.Logger,
	}
}

func randomISN() Value {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return Value(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

// Sender returns the connection's send half.
func (c *Connection) Sender() *Sender { return c.sender }

// Receiver returns the connection's receive half.
func (c *Connection) Receiver() *Receiver { return c.receiver }

// Active reports whether the connection still processes inbound segments
// and ticks. Once false it stays false for the object's lifetime.
func (c *Connection) Active() bool { return c.active }

// State derives the connection's RFC 9293 state from the sender and
// receiver's current fields. LISTEN, SYN-SENT and SYN-RECEIVED are exact;
// the post-handshake states are reconstructed from whichever side has
// finished its stream, folding CLOSING into LAST-ACK since this
// implementation keeps no record of which FIN was sent first.
func (c *Connection) State() State {
	s, r := c.sender, c.receiver
	switch {
	case !c.active:
		return StateClosed
	case !r.SynReceived() && s.NextSeqno() == 0:
		return StateListen
	case s.NextSeqno() > 0 && uint64(s.BytesInFlight()) == s.NextSeqno() && !r.SynReceived():
		return StateSynSent
	case r.SynReceived() && !r.FinReceived() && s.NextSeqno() > 0 && s.BytesInFlight() > 0:
		return StateSynRcvd
	}

	receiverDone := r.Output().InputEnded()
	senderFinAcked := s.FinSent() && s.BytesInFlight() == 0

	switch {
	case !receiverDone && !s.FinSent():
		return StateEstablished
	case !receiverDone && !senderFinAcked:
		return StateFinWait1
	case !receiverDone:
		return StateFinWait2
	case !s.FinSent():
		return StateCloseWait
	case !senderFinAcked:
		return StateLastAck
	case c.lingerAfterStreamsFinish:
		return StateTimeWait
	default:
		return StateClosed
	}
}

// SegmentReceived processes an inbound segment. The sender's view of the
// peer's ACK is applied before the receiver processes the segment's
// payload, so that any single resulting outbound ACK reflects both our
// advanced send state and the updated receive window.
func (c *Connection) SegmentReceived(seg *Segment) {
	if !c.active {
		return
	}
	c.timeSinceLastSegmentReceived = 0
	c.traceSeg("in", seg)

	needEmptyOut := false

	if c.inSynSent() && seg.Flags.HasAny(FlagACK) && len(seg.Payload) > 0 {
		return
	}

	if c.sender.NextSeqno() > 0 && seg.Flags.HasAny(FlagACK) {
		if !c.sender.AckReceived(seg.ACK, seg.WND) {
			needEmptyOut = true
		}
	}

	if !c.receiver.SegmentReceived(seg) {
		needEmptyOut = true
	}
	c.traceSnd("post_segment_received")
	c.traceRcv("post_segment_received")

	if seg.Flags.HasAny(FlagSYN) && c.sender.NextSeqno() == 0 {
		c.pushSegmentsOut(true)
		return
	}

	if seg.Flags.HasAny(FlagRST) {
		if c.inSynSent() && !seg.Flags.HasAny(FlagACK) {
			return
		}
		c.UncleanShutdown(false)
		return
	}

	if seg.LEN() > 0 {
		needEmptyOut = true
	}

	if needEmptyOut {
		if _, ok := c.receiver.Ackno(); ok && !c.sender.PendingOutbox() {
			c.sender.SendEmptySegment()
		}
	}

	c.pushSegmentsOut(false)
}

func (c *Connection) inSynSent() bool {
	return c.sender.NextSeqno() > 0 &&
		uint64(c.sender.BytesInFlight()) == c.sender.NextSeqno() &&
		!c.receiver.SynReceived()
}

func (c *Connection) inSynRcvd() bool {
	return c.receiver.SynReceived() && !c.receiver.FinReceived() &&
		c.sender.NextSeqno() > 0 && c.sender.BytesInFlight() > 0
}

// pushSegmentsOut fills the send window, decorates every queued outbound
// segment with our current ACK and advertised window, and applies clean
// shutdown bookkeeping.
func (c *Connection) pushSegmentsOut(sendSyn bool) {
	c.sender.FillWindow(sendSyn || c.inSynRcvd())

	pending := c.sender.Outbox()
	for i := range pending {
		if ackno, ok := c.receiver.Ackno(); ok {
			pending[i].Flags |= FlagACK
			pending[i].ACK = ackno
			win := c.receiver.WindowSize()
			if win > 65535 {
				win = 65535
			}
			pending[i].WND = win
		}
		if c.needSendRst {
			pending[i].Flags |= FlagRST
			c.needSendRst = false
		}
	}
	c.outbox = append(c.outbox, pending...)

	c.cleanShutdown()
}

// cleanShutdown retires the connection once both streams have finished
// and every byte has been acknowledged, subject to the linger period.
func (c *Connection) cleanShutdown() {
	if c.receiver.Output().InputEnded() && !c.sender.Stream().EOF() {
		c.lingerAfterStreamsFinish = false
	}
	if c.sender.Stream().EOF() && c.sender.BytesInFlight() == 0 && c.receiver.Output().InputEnded() {
		if !c.lingerAfterStreamsFinish || c.timeSinceLastSegmentReceived >= LingerMultiplier*c.sender.initialRTO {
			c.active = false
		}
	}
}

// UncleanShutdown marks both streams in error and deactivates the
// connection, optionally emitting a RST.
func (c *Connection) UncleanShutdown(sendRst bool) {
	c.debug("unclean shutdown", "send_rst", sendRst)
	c.sender.Stream().SetError()
	c.receiver.Output().SetError()
	c.active = false
	if sendRst {
		c.needSendRst = true
		if !c.sender.PendingOutbox() {
			c.sender.SendEmptySegment()
		}
		c.pushSegmentsOut(false)
	}
}

// Tick advances the connection's clock by deltaMs milliseconds, driving
// the sender's retransmission timer and escalating to an abortive
// shutdown once retransmissions are exhausted.
func (c *Connection) Tick(deltaMs int) {
	if !c.active {
		return
	}
	c.timeSinceLastSegmentReceived += deltaMs
	c.sender.Tick(deltaMs)
	if c.sender.ConsecutiveRetx() > MaxRetxAttempts {
		c.logerr("giving up on connection", errRetransmissionsExhausted)
		c.UncleanShutdown(true)
		return
	}
	c.pushSegmentsOut(false)
}

// Connect initiates the connection as the active opener. Calling it again
// after the SYN has been sent is a no-op, because FillWindow sees
// synSent already set.
func (c *Connection) Connect() { c.pushSegmentsOut(true) }

// Write forwards bytes to the outbound stream and flushes whatever new
// segments that makes possible. Once the connection is inactive it accepts
// nothing and returns 0.
func (c *Connection) Write(b []byte) int {
	if !c.active {
		return 0
	}
	n := c.sender.Stream().Write(b)
	c.pushSegmentsOut(false)
	return n
}

// EndInputStream signals that no more application bytes will be written.
func (c *Connection) EndInputStream() {
	c.sender.Stream().EndInput()
	c.pushSegmentsOut(false)
}

// SegmentsOut drains every segment queued for transmission since the last
// call, in the order they must be transmitted.
func (c *Connection) SegmentsOut() []Segment {
	if len(c.outbox) == 0 {
		return nil
	}
	out := c.outbox
	c.outbox = nil
	return out
}

// Close triggers a clean shutdown request: once both streams have
// finished and drained, the connection deactivates itself on a
// subsequent Tick or SegmentReceived.
func (c *Connection) Close() { c.EndInputStream() }
