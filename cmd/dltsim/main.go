// dltsim stands in for a dlt-daemon: it listens on the bridge's
// upstream port and emits a rotating set of well-formed DLT log
// messages to every client, for end-to-end testing without real ECUs.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"time"

	"dlt-bridge-server/dlt"
)

type sample struct {
	ctxID   string
	level   dlt.LogLevel
	payload func(cycle uint32) string
}

// One message per diagnostic view, values varied so viewers show
// changing data.
var samples = []sample{
	{"REGI", dlt.LogInfo, func(c uint32) string {
		return fmt.Sprintf("REG:voltage:%.2f", 3.3+float64(c%50)*0.01)
	}},
	{"REGI", dlt.LogDebug, func(c uint32) string {
		return fmt.Sprintf("REG:STATUS_REG:0x%02X", c&0xFF)
	}},
	{"CHRT", dlt.LogInfo, func(c uint32) string {
		return fmt.Sprintf("temperature:%d:%.1f", time.Now().Unix(), 70.0+float64(c%25)*0.2)
	}},
	{"TRCE", dlt.LogDebug, func(c uint32) string {
		return fmt.Sprintf("task_%d:%d:start:priority=5", c, time.Now().Unix())
	}},
	{"LOGD", dlt.LogWarn, func(c uint32) string {
		return fmt.Sprintf("cycle %d complete", c)
	}},
}

func main() {
	addr := flag.String("addr", ":3490", "listen address")
	interval := flag.Duration("interval", time.Second, "delay between message cycles")
	flag.Parse()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		slog.Error("listen failed", "addr", *addr, "error", err)
		return
	}
	slog.Info("dltsim listening", "addr", *addr, "interval", *interval)

	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Error("accept failed", "error", err)
			return
		}
		go serve(conn, *interval)
	}
}

func serve(conn net.Conn, interval time.Duration) {
	defer conn.Close()
	slog.Info("client connected", "remote", conn.RemoteAddr())

	start := time.Now()
	// DLT timestamps are in 0.1ms resolution.
	timestamp := func() uint32 {
		return uint32(time.Since(start) / (100 * time.Microsecond))
	}

	builders := make(map[string]*dlt.MessageBuilder)
	builderFor := func(ctxID string) *dlt.MessageBuilder {
		b, ok := builders[ctxID]
		if !ok {
			b = dlt.NewMessageBuilder("ECU1", "APP1", ctxID)
			b.Timestamp = timestamp
			builders[ctxID] = b
		}
		return b
	}

	for cycle := uint32(0); ; cycle++ {
		for _, s := range samples {
			msg, err := builderFor(s.ctxID).LogText(s.level, s.payload(cycle))
			if err != nil {
				slog.Error("build failed", "error", err)
				return
			}
			if _, err := conn.Write(msg); err != nil {
				slog.Info("client disconnected", "remote", conn.RemoteAddr())
				return
			}
		}
		time.Sleep(interval)
	}
}
