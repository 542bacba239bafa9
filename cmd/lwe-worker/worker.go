package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/luxfi/lwe"
	"github.com/luxfi/lwe/internal/queue"
	"github.com/luxfi/lwe/internal/storage"
)

// WorkerPool manages a pool of evaluation workers.
type WorkerPool struct {
	numWorkers int
	queue      queue.Queue
	storage    storage.Storage
	params     lwe.Parameters

	// Evaluators by evaluation key set handle, least recently used evicted
	// first. Evaluators are read-only and shared between workers.
	evaluators *lru.Cache[storage.Handle, *lwe.Evaluator]
	loads      singleflight.Group

	wg           sync.WaitGroup
	cancel       context.CancelFunc
	running      atomic.Bool
	successCount atomic.Int64
	failureCount atomic.Int64
}

// NewWorkerPool creates a pool of numWorkers workers over q and store that
// keeps at most cacheSize evaluation key sets in memory.
func NewWorkerPool(numWorkers, cacheSize int, q queue.Queue, store storage.Storage, params lwe.Parameters) (*WorkerPool, error) {
	evaluators, err := lru.New[storage.Handle, *lwe.Evaluator](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("evaluator cache: %w", err)
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		queue:      q,
		storage:    store,
		params:     params,
		evaluators: evaluators,
	}, nil
}

// Start starts the worker pool.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.running.Load() {
		return errors.New("pool already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running.Store(true)

	log.Printf("Starting %d workers", p.numWorkers)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	return nil
}

// Stop gracefully stops the worker pool.
func (p *WorkerPool) Stop() error {
	if !p.running.Load() {
		return nil
	}

	log.Println("Stopping worker pool...")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker pool stopped")
	case <-time.After(30 * time.Second):
		log.Println("Shutdown timeout exceeded")
		return errors.New("shutdown timeout")
	}

	p.running.Store(false)
	return nil
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log.Printf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopping", id)
			return
		default:
		}

		job, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, queue.ErrQueueEmpty) {
				continue
			}
			log.Printf("Worker %d: failed to pop job: %v", id, err)
			time.Sleep(time.Second)
			continue
		}

		p.processJob(ctx, id, job)
	}
}

// evaluator returns the evaluator for the key set stored under handle,
// loading it on first use. Concurrent loads of one handle are merged and
// never block lookups of other handles.
func (p *WorkerPool) evaluator(ctx context.Context, handle storage.Handle) (*lwe.Evaluator, error) {
	if eval, ok := p.evaluators.Get(handle); ok {
		return eval, nil
	}

	v, err, _ := p.loads.Do(string(handle), func() (interface{}, error) {
		if eval, ok := p.evaluators.Get(handle); ok {
			return eval, nil
		}

		data, err := p.storage.Load(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("load keys: %w", err)
		}
		eks := new(lwe.EvaluationKeySet)
		if err := eks.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("unmarshal keys: %w", err)
		}
		if err := eks.Check(p.params); err != nil {
			return nil, fmt.Errorf("keys %s: %w", handle, err)
		}

		eval := lwe.NewEvaluator(p.params, eks)
		if p.evaluators.Add(handle, eval) {
			log.Printf("Evaluator cache full, evicted least recently used key set")
		}
		return eval, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*lwe.Evaluator), nil
}

func (p *WorkerPool) processJob(ctx context.Context, workerID int, job *queue.Job) {
	log.Printf("Worker %d: processing job %s (op=%s)", workerID, job.ID, job.Operation)

	fail := func(format string, args ...interface{}) {
		job.Status = queue.StatusFailed
		job.Error = fmt.Sprintf(format, args...)
		if err := p.queue.Update(ctx, job); err != nil {
			log.Printf("Worker %d: failed to update job status: %v", workerID, err)
		}
		p.failureCount.Add(1)
		log.Printf("Worker %d: job %s failed: %s", workerID, job.ID, job.Error)
	}

	if err := job.Validate(); err != nil {
		fail("%v", err)
		return
	}

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job status: %v", workerID, err)
	}

	eval, err := p.evaluator(ctx, storage.Handle(job.KeysHandle))
	if err != nil {
		fail("%v", err)
		return
	}

	lhs, err := p.storage.Load(ctx, storage.Handle(job.LHSHandle))
	if err != nil {
		fail("load lhs: %v", err)
		return
	}

	var rhs []byte
	if job.Operation.Binary() {
		if rhs, err = p.storage.Load(ctx, storage.Handle(job.RHSHandle)); err != nil {
			fail("load rhs: %v", err)
			return
		}
	}

	result, err := job.Operation.Apply(eval, lhs, rhs)
	if err != nil {
		fail("%v", err)
		return
	}

	handle, err := p.storage.Store(ctx, result)
	if err != nil {
		fail("store result: %v", err)
		return
	}

	job.Status = queue.StatusCompleted
	job.ResultHandle = string(handle)
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job result: %v", workerID, err)
	}

	p.successCount.Add(1)
	log.Printf("Worker %d: job %s completed", workerID, job.ID)
}
