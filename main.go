// dlt-bridge-server bridges a DLT (AUTOSAR Diagnostic Log and Trace)
// TCP stream from one dlt-daemon to any number of WebSocket consumers.
// Messages are re-framed on the standard header's length field and
// forwarded wire-identical, best-effort, to everyone connected.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"dlt-bridge-server/config"
	"dlt-bridge-server/hub"
	"dlt-bridge-server/metrics"
	"dlt-bridge-server/relay"
	ws "dlt-bridge-server/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log.Level)

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("bridge failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	policy, _ := relay.ParseOverflowPolicy(cfg.Relay.OverflowPolicy)
	queue := relay.NewQueue(cfg.Relay.QueueSize, policy)
	registerQueueMetrics(queue)

	broadcaster := hub.New(m)
	ingestor := relay.NewIngestor(cfg.Upstream.Addr(), queue, cfg.Upstream.ReconnectDelay, m)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(broadcaster, cfg.Relay.ConsumerBuffer))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(broadcaster, queue))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingestor.Run(ctx) })
	g.Go(func() error { return broadcaster.Run(ctx, queue) })
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Server.Port, "upstream", cfg.Upstream.Addr())
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogger(level string) {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func registerQueueMetrics(q *relay.Queue) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "dltbridge",
		Name:      "queue_depth",
		Help:      "Frames waiting for broadcast.",
	}, func() float64 { return float64(q.Len()) }))
	prometheus.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "dltbridge",
		Name:      "queue_evictions_total",
		Help:      "Frames evicted under the drop_oldest policy.",
	}, func() float64 { return float64(q.Dropped()) }))
}

func wsHandler(broadcaster *hub.Hub, sendBuffer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		wsConn := ws.NewConn(uuid.New().String(), conn, broadcaster, sendBuffer)
		wsConn.Start()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(broadcaster *hub.Hub, queue *relay.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"consumers":  broadcaster.Stats(),
			"queueDepth": queue.Len(),
			"queueDrops": queue.Dropped(),
		})
	}
}
