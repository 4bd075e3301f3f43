package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"dlt-bridge-server/dlt"
	"dlt-bridge-server/metrics"
)

// Ingestor owns the upstream connection: it connects, re-frames the
// byte stream into DLT messages and pushes them onto the queue,
// reconnecting after a fixed delay on any failure. Framing errors,
// EOF, refused connects and other I/O errors are all treated the same
// way: drop the connection, back off, try again.
type Ingestor struct {
	addr       string
	queue      *Queue
	retryDelay time.Duration
	metrics    *metrics.Metrics
	dialer     net.Dialer
}

func NewIngestor(addr string, q *Queue, retryDelay time.Duration, m *metrics.Metrics) *Ingestor {
	return &Ingestor{
		addr:       addr,
		queue:      q,
		retryDelay: retryDelay,
		metrics:    m,
	}
}

// Run connects and ingests until ctx is cancelled. It never returns an
// error other than ctx.Err(): every upstream failure heals through
// reconnection.
func (in *Ingestor) Run(ctx context.Context) error {
	first := true
	for {
		if !first {
			in.metrics.Reconnects.Inc()
		}
		first = false

		conn, err := in.dialer.DialContext(ctx, "tcp", in.addr)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("upstream connect failed", "addr", in.addr, "retryIn", in.retryDelay, "error", err)
			if err := sleep(ctx, in.retryDelay); err != nil {
				return err
			}
			continue
		}

		slog.Info("connected to upstream", "addr", in.addr)
		err = in.ingest(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var ferr *dlt.FramingError
		switch {
		case errors.As(err, &ferr):
			slog.Error("framing violation, dropping connection", "addr", in.addr, "error", err)
		case errors.Is(err, io.EOF):
			slog.Warn("upstream closed connection", "addr", in.addr)
		default:
			slog.Warn("upstream read failed", "addr", in.addr, "error", err)
		}

		if err := sleep(ctx, in.retryDelay); err != nil {
			return err
		}
	}
}

func (in *Ingestor) ingest(ctx context.Context, conn net.Conn) error {
	// Closing the conn is the only way to unblock a read mid-flight.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	fr := dlt.NewFrameReader(conn)
	for {
		frame, err := fr.Read()
		if err != nil {
			return err
		}

		in.metrics.FramesRead.Inc()
		in.metrics.BytesRead.Add(float64(len(frame)))
		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			h, _ := dlt.ParseHeader(frame)
			slog.Debug("frame read", "len", h.Length, "mcnt", h.MCNT)
		}

		if err := in.queue.Push(ctx, frame); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
