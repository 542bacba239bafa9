// Command lwe-worker runs homomorphic evaluation workers.
//
// Workers pop jobs from a Redis queue, load the operand streams and the
// evaluation key set from storage, and store the result stream.
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

	"github.com/luxfi/lwe/internal/config"
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
		numWorkers  = flag.Int("workers", 4, "number of worker goroutines")
		keyCache    = flag.Int("key-cache", 4, "evaluation key sets kept in memory")
		redisAddr   = flag.String("redis", "localhost:6379", "Redis address")
		redisDB     = flag.Int("redis-db", 0, "Redis database number")
		queueName   = flag.String("queue", "default", "queue name")
		backend     = flag.String("storage", "file", "object storage: file or redis")
		storagePath = flag.String("storage-path", "/tmp/lwe-storage", "storage directory (file) or key prefix (redis)")
		paramsPath  = flag.String("params", "", "parameter file (YAML or JSON)")
		preset      = flag.String("preset", "", "parameter preset, used when -params is empty")
		metricsAddr = flag.String("metrics", ":9090", "metrics server address")
	)
	flag.Parse()

	params, err := config.Resolve(*paramsPath, *preset)
	if err != nil {
		return fmt.Errorf("load parameters: %w", err)
	}

	log.Printf("LWE Worker starting...")
	log.Printf("  Workers: %d", *numWorkers)
	log.Printf("  Redis: %s", *redisAddr)
	log.Printf("  Storage: %s %s", *backend, *storagePath)
	log.Printf("  Params: %s", params)
	log.Printf("  Metrics: %s", *metricsAddr)

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

	pool, err := NewWorkerPool(*numWorkers, *keyCache, q, store, params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "# HELP lwe_jobs_total Total evaluation jobs\n")
		fmt.Fprintf(w, "# TYPE lwe_jobs_total counter\n")
		fmt.Fprintf(w, "lwe_jobs_total{status=\"success\"} %d\n", pool.successCount.Load())
		fmt.Fprintf(w, "lwe_jobs_total{status=\"failure\"} %d\n", pool.failureCount.Load())
	})

	server := &http.Server{
		Addr:    *metricsAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server starting on %s", *metricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}

	if err := pool.Stop(); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
