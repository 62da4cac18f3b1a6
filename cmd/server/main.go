// Package main runs the analysis service: the HTTP API, the RPC endpoint
// pool with its optional slot watcher, and the narrative generator client.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"repo-sentinel/internal/aggregator"
	"repo-sentinel/internal/inspection"
	"repo-sentinel/internal/narrative"
	"repo-sentinel/internal/rpcpool"
	"repo-sentinel/internal/server"
)

// defaultEndpoints is the ordered fallback pool for Solana mainnet;
// first-listed is most preferred.
var defaultEndpoints = []string{
	"https://api.mainnet-beta.solana.com",
	"https://solana-api.projectserum.com",
	"https://rpc.ankr.com/solana",
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("SOLANA_RPC_ENDPOINTS"), "Comma-separated ordered Solana RPC endpoints")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Optional Solana WebSocket endpoint for the slot watcher")
	geminiKey := flag.String("gemini-api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key for the narrative generator")
	geminiModel := flag.String("gemini-model", envOr("GEMINI_MODEL", narrative.DefaultModel), "Gemini model name")
	probeTimeout := flag.Duration("probe-timeout", 3*time.Second, "Per-endpoint liveness probe timeout")
	probeRace := flag.Bool("probe-race", false, "Probe endpoints concurrently instead of in list order")
	requestTimeout := flag.Duration("request-timeout", server.DefaultRequestTimeout, "End-to-end analysis request timeout")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *geminiKey == "" {
		logger.Fatal("--gemini-api-key is required (or set GEMINI_API_KEY)")
	}

	endpoints := splitEndpoints(*rpcEndpoints)
	if len(endpoints) == 0 {
		endpoints = defaultEndpoints
	}
	logger.Printf("RPC endpoint pool: %v", endpoints)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Components
	pool := rpcpool.New(rpcpool.Options{
		Endpoints:    endpoints,
		ProbeTimeout: *probeTimeout,
		Logger:       log.New(os.Stdout, "[rpcpool] ", log.LstdFlags|log.Lshortfile),
	})

	inspector := inspection.NewInspector(log.New(os.Stdout, "[inspection] ", log.LstdFlags|log.Lshortfile))

	generator, err := narrative.NewGeminiGenerator(ctx, *geminiKey, *geminiModel)
	if err != nil {
		logger.Fatalf("Failed to create narrative generator: %v", err)
	}
	adapter := narrative.NewAdapter(generator, log.New(os.Stdout, "[narrative] ", log.LstdFlags|log.Lshortfile))

	agg := aggregator.New(aggregator.Options{
		Pool:       pool,
		Inspector:  inspector,
		Adapter:    adapter,
		RaceProbes: *probeRace,
		Logger:     log.New(os.Stdout, "[aggregator] ", log.LstdFlags|log.Lshortfile),
	})

	srv := server.New(server.Options{
		Aggregator:     agg,
		RequestTimeout: *requestTimeout,
		Logger:         logger,
	})

	// Optional endpoint-health watcher
	if *wsEndpoint != "" {
		watcher := rpcpool.NewWatcher(pool, *wsEndpoint, 0,
			log.New(os.Stdout, "[watcher] ", log.LstdFlags|log.Lshortfile))
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("Slot watcher stopped: %v", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}

		// Second signal forces immediate exit
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	logger.Printf("Starting HTTP server on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// splitEndpoints parses the comma-separated endpoint list preserving order.
func splitEndpoints(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// envOr returns the env var value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
