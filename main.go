package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"screening-room-server/config"
	"screening-room-server/events"
	"screening-room-server/hub"
	"screening-room-server/protocol"
	ws "screening-room-server/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cmd := &cli.Command{
		Name:  "screening-room-server",
		Usage: "co-viewing room coordinator over WebSocket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("ROOMS_CONFIG"),
			},
			&cli.StringFlag{Name: "port", Usage: "HTTP listen port (overrides config and PORT)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.String("port")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := events.NewSink(ctx, cfg.Events)
	if err != nil {
		return err
	}
	defer sink.Close()
	dispatcher := events.NewDispatcher(sink, cfg.Events.Buffer)

	rooms := hub.New(
		hub.WithCodeGenerator(hub.DigitCodeGenerator{Length: cfg.Rooms.CodeLength}),
		hub.WithEmitter(dispatcher),
	)
	handler := protocol.NewHandler(rooms)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.Handler(handler, cfg.Server.AllowedOrigins))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(rooms))
	mux.HandleFunc("/rooms", roomsHandler(rooms))

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Server.Port, "events", cfg.Events.Backend)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogger(levelName, format string) {
	level := slog.LevelInfo
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(rooms *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, sessions := rooms.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"rooms": n, "clients": sessions})
	}
}

func roomsHandler(rooms *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rooms.Rooms())
	}
}
