// Command lwe-server runs the LWE HTTP service.
//
// The server generates a key bundle at startup and serves encryption,
// evaluation and (optionally) decryption over HTTP:
//
//	lwe-server -addr :8448 -preset PN64Q12289 -decrypt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luxfi/lwe/internal/config"
	"github.com/luxfi/lwe/internal/queue"
	"github.com/luxfi/lwe/internal/storage"
	"github.com/luxfi/lwe/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr        = flag.String("addr", ":8448", "HTTP server address")
		paramsPath  = flag.String("params", "", "parameter file (YAML or JSON)")
		preset      = flag.String("preset", "", "parameter preset, used when -params is empty")
		decrypt     = flag.Bool("decrypt", false, "enable the /decrypt endpoint")
		backend     = flag.String("storage", "none", "evaluation key storage: none, memory, file or redis")
		storagePath = flag.String("storage-path", "/tmp/lwe-storage", "storage directory (file) or key prefix (redis)")
		redisAddr   = flag.String("redis", "localhost:6379", "Redis address for redis storage")
	)
	flag.Parse()

	params, err := config.Resolve(*paramsPath, *preset)
	if err != nil {
		return fmt.Errorf("load parameters: %w", err)
	}

	log.Printf("LWE Server starting...")
	log.Printf("  Address: %s", *addr)
	log.Printf("  Params: %s", params)
	log.Printf("  Decrypt: %v", *decrypt)
	log.Printf("  Storage: %s", *backend)

	var store storage.Storage
	if *backend != "none" {
		var client *redis.Client
		if *backend == "redis" {
			if client, err = queue.NewClient(queue.RedisConfig{Addr: *redisAddr}); err != nil {
				return err
			}
		}
		if store, err = storage.Open(*backend, *storagePath, client); err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	srv, err := server.New(ctx, server.Config{
		Address:      *addr,
		Params:       params,
		AllowDecrypt: *decrypt,
		Storage:      store,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	log.Printf("Key bundle %s generated in %v", srv.KeyID(), time.Since(start))

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("LWE Server listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received signal: %s", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("LWE Server stopped")
	return nil
}
