// Package tcp implements one endpoint of the TCP transport protocol over an
// abstract datagram substrate. It is split into the pieces a full
// implementation needs: a bounded byte stream with backpressure ([ByteStream]),
// an out-of-order segment reassembler ([Reassembler]), a sliding-window sender
// with retransmission ([Sender]), a receiver that advertises a window
// ([Receiver]), and an orchestrator that composes the two halves into the
// RFC 9293 connection lifecycle ([Connection]).
//
// The package does not touch sockets, IP headers, checksums or address
// resolution: callers feed it parsed [Segment] values and drain its outbound
// queue themselves, typically from a goroutine that owns a UDP socket, a TAP
// device, or a test harness.
package tcp

import (
	"math/bits"
)

// Value is a 32-bit TCP wire sequence number. It wraps modulo 2**32 and is
// only ever compared to other Values through [Wrap] and [Unwrap]: arithmetic
// on raw Values elsewhere in the package is an indication that an absolute
// index should have been used instead.
type Value uint32

// Size is a count of octets, used both for "length in sequence space" and
// for an advertised window. [Connection] caps the window it stamps on
// outbound segments at 65535; inbound WND values are not validated.
type Size uint32

// Flags is the set of TCP control bits this implementation understands.
// Options, the urgent pointer, and the remaining RFC 9293 flags are out of
// scope; see the package doc.
type Flags uint8

const (
	FlagFIN Flags = 1 << iota // FlagFIN - no more data from the sender.
	FlagSYN                   // FlagSYN - synchronize sequence numbers.
	FlagRST                   // FlagRST - reset the connection.
	FlagACK                   // FlagACK - acknowledgment field is significant.
)

const synack = FlagSYN | FlagACK
const finack = FlagFIN | FlagACK

// HasAny reports whether any bit in mask is set in flags.
func (f Flags) HasAny(mask Flags) bool { return f&mask != 0 }

// HasAll reports whether every bit in mask is set in flags.
func (f Flags) HasAll(mask Flags) bool { return f&mask == mask }

// String returns a human readable flag list, e.g. "[SYN,ACK]".
func (f Flags) String() string {
	switch f {
	case 0:
		return "[]"
	case synack:
		return "[SYN,ACK]"
	case finack:
		return "[FIN,ACK]"
	case FlagACK:
		return "[ACK]"
	case FlagSYN:
		return "[SYN]"
	case FlagFIN:
		return "[FIN]"
	case FlagRST:
		return "[RST]"
	}
	buf := make([]byte, 0, 2+4*bits.OnesCount8(uint8(f)))
	buf = append(buf, '[')
	buf = f.AppendFormat(buf)
	buf = append(buf, ']')
	return string(buf)
}

// AppendFormat appends a comma-separated flag list (without brackets) to b.
func (f Flags) AppendFormat(b []byte) []byte {
	const names = "FINSYNRSTACK"
	const width = 3
	first := true
	for f != 0 {
		i := bits.TrailingZeros8(uint8(f))
		if !first {
			b = append(b, ',')
		}
		first = false
		b = append(b, names[i*width:i*width+width]...)
		f &^= 1 << i
	}
	return b
}

// Segment is a TCP segment as exchanged with the peer: header fields plus a
// payload. LEN reports how many sequence numbers the segment occupies,
// counting SYN and FIN as one octet each.
type Segment struct {
	SEQ     Value  // sequence number of the first octet; if SYN is set this is the ISN.
	ACK     Value  // acknowledgment number, meaningful only if Flags.HasAny(FlagACK).
	WND     Size   // advertised window, capped at 65535 by the orchestrator.
	Flags   Flags  // SYN/ACK/FIN/RST.
	Payload []byte // application data; never includes SYN/FIN accounting.
}

// LEN returns the segment's length in sequence space: SYN + payload + FIN.
func (seg *Segment) LEN() Size {
	n := Size(len(seg.Payload))
	if seg.Flags.HasAny(FlagSYN) {
		n++
	}
	if seg.Flags.HasAny(FlagFIN) {
		n++
	}
	return n
}

// Last returns the sequence number of the segment's last octet, or SEQ
// itself if the segment occupies no sequence space.
func (seg *Segment) Last() Value {
	n := seg.LEN()
	if n == 0 {
		return seg.SEQ
	}
	return seg.SEQ + Value(n) - 1
}

// State enumerates the points a [Connection] can be observed in. Unlike a
// classic TCP implementation, Connection never stores a State value: every
// State is derived on demand from the sender and receiver's own fields (see
// [Connection.State]), so there is no discrete state machine to fall out of
// sync with reality.
type State uint8

const (
	StateListen      State = iota // LISTEN
	StateSynSent                  // SYN-SENT
	StateSynRcvd                  // SYN-RECEIVED
	StateEstablished              // ESTABLISHED
	StateCloseWait                // CLOSE-WAIT
	StateLastAck                  // LAST-ACK
	StateFinWait1                 // FIN-WAIT-1
	StateFinWait2                 // FIN-WAIT-2
	StateClosing                  // CLOSING
	StateTimeWait                 // TIME-WAIT
	StateClosed                   // CLOSED
)

func (s State) String() string {
	switch s {
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN-SENT"
	case StateSynRcvd:
		return "SYN-RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateCloseWait:
		return "CLOSE-WAIT"
	case StateLastAck:
		return "LAST-ACK"
	case StateFinWait1:
		return "FIN-WAIT-1"
	case StateFinWait2:
		return "FIN-WAIT-2"
	case StateClosing:
		return "CLOSING"
	case StateTimeWait:
		return "TIME-WAIT"
	default:
		return "CLOSED"
	}
}

// IsPreestablished reports whether s precedes the data transfer phase.
func (s State) IsPreestablished() bool {
	return s == StateListen || s == StateSynSent || s == StateSynRcvd
}

// IsClosing reports whether s is a post-ESTABLISHED teardown state.
func (s State) IsClosing() bool {
	return s > StateEstablished
}
