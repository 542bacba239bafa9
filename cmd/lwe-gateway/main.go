// Command lwe-gateway runs the job gateway.
//
// Clients upload ciphertext streams and evaluation key sets, then submit
// jobs that lwe-worker picks up from the queue.
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

	"github.com/luxfi/lwe/internal/queue"
	"github.com/luxfi/lwe/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		redisAddr   = flag.String("redis", "localhost:6379", "Redis address")
		redisDB     = flag.Int("redis-db", 0, "Redis database number")
		queueName   = flag.String("queue", "default", "queue name")
		backend     = flag.String("storage", "file", "object storage: file or redis")
		storagePath = flag.String("storage-path", "/tmp/lwe-storage", "storage directory (file) or key prefix (redis)")
		httpAddr    = flag.String("http", ":8080", "HTTP API address")
	)
	flag.Parse()

	log.Printf("LWE Gateway starting...")
	log.Printf("  Redis: %s", *redisAddr)
	log.Printf("  Storage: %s %s", *backend, *storagePath)
	log.Printf("  HTTP: %s", *httpAddr)

	client, err := queue.NewClient(queue.RedisConfig{
		Addr: *redisAddr,
		DB:   *redisDB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	q := queue.NewRedisQueueFromClient(client, *queueName)
	defer q.Close()

	store, err := storage.Open(*backend, *storagePath, client)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := &http.Server{
		Addr:         *httpAddr,
		Handler:      newGateway(q, store),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("HTTP server starting on %s", *httpAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
