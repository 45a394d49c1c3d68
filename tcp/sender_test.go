package tcp_test

import (
	"testing"

	"github.com/loopstack/mintcp/tcp"
)

func TestSender_synThenData(t *testing.T) {
	s := tcp.NewSender(4096, 100, 1000)
	s.FillWindow(true)
	out := s.Outbox()
	if len(out) != 1 || !out[0].Flags.HasAny(tcp.FlagSYN) || out[0].SEQ != 100 {
		t.Fatalf("expected single SYN segment at seq=100, got %+v", out)
	}

	if !s.AckReceived(101, 1000) {
		t.Fatal("AckReceived for SYN ack should succeed")
	}
	if s.BytesInFlight() != 0 {
		t.Fatalf("BytesInFlight() = %d, want 0", s.BytesInFlight())
	}

	s.Stream().Write([]byte("hello"))
	s.FillWindow(false)
	out = s.Outbox()
	if len(out) != 1 {
		t.Fatalf("expected exactly one data segment, got %d", len(out))
	}
	if string(out[0].Payload) != "hello" || out[0].SEQ != 101 {
		t.Fatalf("unexpected data segment: %+v", out[0])
	}

	if !s.AckReceived(106, 1000) {
		t.Fatal("AckReceived for data ack should succeed")
	}
	if s.BytesInFlight() != 0 {
		t.Fatalf("BytesInFlight() after full ack = %d, want 0", s.BytesInFlight())
	}
}

func TestSender_retransmissionBackoff(t *testing.T) {
	s := tcp.NewSender(4096, 0, 1000)
	s.FillWindow(true)
	s.Outbox()
	if !s.AckReceived(1, 1000) {
		t.Fatal("ack for SYN should succeed")
	}

	s.Stream().Write([]byte("x"))
	s.FillWindow(false)
	s.Outbox()

	s.Tick(999)
	if s.ConsecutiveRetx() != 0 {
		t.Fatalf("ConsecutiveRetx() = %d before RTO elapses, want 0", s.ConsecutiveRetx())
	}
	s.Tick(1)
	if s.ConsecutiveRetx() != 1 {
		t.Fatalf("ConsecutiveRetx() after first timeout = %d, want 1", s.ConsecutiveRetx())
	}
	out := s.Outbox()
	if len(out) != 1 {
		t.Fatalf("expected one retransmitted segment, got %d", len(out))
	}

	s.Tick(2000)
	if s.ConsecutiveRetx() != 2 {
		t.Fatalf("ConsecutiveRetx() after second timeout = %d, want 2", s.ConsecutiveRetx())
	}
}

func TestSender_zeroWindowProbeDoesNotBackOff(t *testing.T) {
	s := tcp.NewSender(4096, 0, 1000)
	s.FillWindow(true)
	s.Outbox()
	s.AckReceived(1, 0) // peer advertises a zero window.

	s.Stream().Write([]byte("xy"))
	s.FillWindow(false)
	probe := s.Outbox()
	if len(probe) != 1 || len(probe[0].Payload) != 1 {
		t.Fatalf("expected a single 1-byte probe segment, got %+v", probe)
	}

	s.Tick(1000)
	if s.ConsecutiveRetx() != 0 {
		t.Fatalf("ConsecutiveRetx() = %d after zero-window timeout, want 0 (no backoff)", s.ConsecutiveRetx())
	}
}

func TestSender_ackIdempotence(t *testing.T) {
	s := tcp.NewSender(4096, 0, 1000)
	s.FillWindow(true)
	s.Outbox()
	s.AckReceived(1, 1000)

	s.Stream().Write([]byte("hello"))
	s.FillWindow(false)
	s.Outbox()

	before := s.BytesInFlight()
	beforeNext := s.NextSeqno()
	if !s.AckReceived(1, 500) { // duplicate of an already-applied ack.
		t.Fatal("duplicate AckReceived should still report success")
	}
	if s.BytesInFlight() != before || s.NextSeqno() != beforeNext {
		t.Fatal("duplicate ack must not change bytes_in_flight or next_seqno")
	}
}

func TestSender_ackForUnsentDataRejected(t *testing.T) {
	s := tcp.NewSender(4096, 0, 1000)
	s.FillWindow(true)
	s.Outbox()
	if s.AckReceived(100, 1000) {
		t.Fatal("ack acknowledging unsent data must be rejected")
	}
}
