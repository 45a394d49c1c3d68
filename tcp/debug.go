package tcp

import (
	"context"
	"log/slog"

	"github.com/loopstack/mintcp/internal"
)

// logEnabled reports whether log would emit at level without touching
// slog's attr-building path when it would not.
func logEnabled(log *slog.Logger, level slog.Level) bool {
	return log != nil && log.Enabled(context.Background(), level)
}

func (c *Connection) debug(msg string, args ...any) {
	if c.log == nil || !c.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	c.log.Debug(msg, args...)
}

func (c *Connection) logerr(msg string, err error) {
	if c.log == nil {
		return
	}
	c.log.Error(msg, slog.Any("err", err))
}

// traceSeg logs a segment crossing the boundary between the connection
// and its owner, at [internal.LevelTrace].
func (c *Connection) traceSeg(dir string, seg *Segment) {
	attrs := internal.LogAttrs(logEnabled(c.log, internal.LevelTrace),
		slog.String("dir", dir),
		slog.Uint64("seq", uint64(seg.SEQ)),
		slog.Uint64("ack", uint64(seg.ACK)),
		slog.Uint64("wnd", uint64(seg.WND)),
		slog.String("flags", seg.Flags.String()),
		slog.Int("payload", len(seg.Payload)),
	)
	if attrs == nil {
		return
	}
	c.log.LogAttrs(context.Background(), internal.LevelTrace, "segment", attrs...)
}

// traceSnd logs the sender's accounting after a state change, at
// [internal.LevelTrace].
func (c *Connection) traceSnd(event string) {
	s := c.sender
	attrs := internal.LogAttrs(logEnabled(c.log, internal.LevelTrace),
		slog.Uint64("next_seqno", s.NextSeqno()),
		slog.Uint64("bytes_in_flight", uint64(s.BytesInFlight())),
		slog.Int("consecutive_retx", s.ConsecutiveRetx()),
	)
	if attrs == nil {
		return
	}
	c.log.LogAttrs(context.Background(), internal.LevelTrace, event, attrs...)
}

// traceRcv logs the receiver's accounting after a state change, at
// [internal.LevelTrace].
func (c *Connection) traceRcv(event string) {
	r := c.receiver
	ackno, ok := r.Ackno()
	attrs := internal.LogAttrs(logEnabled(c.log, internal.LevelTrace),
		slog.Bool("syn_received", r.SynReceived()),
		slog.Bool("fin_received", r.FinReceived()),
		slog.Uint64("ackno", uint64(ackno)),
		slog.Bool("ackno_valid", ok),
		slog.Uint64("window", uint64(r.WindowSize())),
	)
	if attrs == nil {
		return
	}
	c.log.LogAttrs(context.Background(), internal.LevelTrace, event, attrs...)
}
