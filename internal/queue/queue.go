// Package queue provides the job queue for homomorphic evaluation requests.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luxfi/lwe"
)

// Common errors.
var (
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidOperation = errors.New("invalid operation")
)

// JobStatus represents the state of a job.
type JobStatus uint8

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("JobStatus(%d)", uint8(s))
}

// Operation is a homomorphic operation on ciphertext streams.
type Operation string

const (
	OpAdd       Operation = "add"
	OpMul       Operation = "mul"
	OpBootstrap Operation = "bootstrap"
)

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpAdd, OpMul, OpBootstrap:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// Binary reports whether the operation takes two operands.
func (op Operation) Binary() bool {
	return op == OpAdd || op == OpMul
}

// Apply evaluates op on serialized ciphertext streams and returns the
// serialized result. right is ignored for bootstrap.
func (op Operation) Apply(eval *lwe.Evaluator, left, right []byte) ([]byte, error) {
	lhs, err := lwe.UnmarshalStream(left)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}

	var rhs []*lwe.Ciphertext
	if op.Binary() {
		if rhs, err = lwe.UnmarshalStream(right); err != nil {
			return nil, fmt.Errorf("right: %w", err)
		}
	}

	var out []*lwe.Ciphertext
	switch op {
	case OpAdd:
		out, err = eval.AddStream(lhs, rhs)
	case OpMul:
		out, err = eval.MulStream(lhs, rhs)
	case OpBootstrap:
		out, err = eval.BootstrapStream(lhs)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return lwe.MarshalStream(out)
}

// Job is an evaluation request over stored ciphertext streams.
type Job struct {
	ID           string    `json:"id"`
	Operation    Operation `json:"operation"`
	KeysHandle   string    `json:"keys_handle"`
	LHSHandle    string    `json:"lhs_handle"`
	RHSHandle    string    `json:"rhs_handle,omitempty"`
	ResultHandle string    `json:"result_handle,omitempty"`
	Status       JobStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks that the job names a known operation and the operands it needs.
func (j *Job) Validate() error {
	if _, err := ParseOperation(string(j.Operation)); err != nil {
		return err
	}
	if j.ID == "" || j.KeysHandle == "" || j.LHSHandle == "" {
		return fmt.Errorf("%w: job needs id, keys and lhs handles", ErrInvalidOperation)
	}
	if j.Operation.Binary() && j.RHSHandle == "" {
		return fmt.Errorf("%w: %s needs an rhs handle", ErrInvalidOperation, j.Operation)
	}
	return nil
}

// Queue defines the interface for job queue operations.
type Queue interface {
	// Push adds a job to the queue.
	Push(ctx context.Context, job *Job) error
	// Pop retrieves and removes the next job from the queue.
	Pop(ctx context.Context) (*Job, error)
	// Update updates job status.
	Update(ctx context.Context, job *Job) error
	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*Job, error)
	// Len returns the number of pending jobs.
	Len(ctx context.Context) (int64, error)
	// Close closes the queue connection.
	Close() error
}

// RedisQueue implements Queue using Redis.
type RedisQueue struct {
	client    *redis.Client
	queueKey  string
	jobPrefix string
	jobTTL    time.Duration
	// popTimeout bounds a single BRPOP so that Pop notices cancellation.
	popTimeout time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient returns a Redis client for cfg after checking the connection.
func NewClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(cfg RedisConfig, queueName string) (*RedisQueue, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisQueueFromClient(client, queueName), nil
}

// NewRedisQueueFromClient creates a queue on an existing client.
func NewRedisQueueFromClient(client *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueKey:  "lwe:queue:" + queueName,
		jobPrefix: "lwe:job:",
		jobTTL:    24 * time.Hour,

		popTimeout: time.Second,
	}
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	job.Status = StatusPending

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, q.jobPrefix+job.ID, data, q.jobTTL)
	pipe.LPush(ctx, q.queueKey, job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push job: %w", err)
	}

	return nil
}

// Pop blocks until a job is available or ctx is done. It returns
// ErrQueueEmpty when no job arrives within the poll interval.
func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	result, err := q.client.BRPop(ctx, q.popTimeout, q.queueKey).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("pop job: %w", err)
	}

	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}

	return q.Get(ctx, result[1])
}

func (q *RedisQueue) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.client.Set(ctx, q.jobPrefix+job.ID, data, q.jobTTL).Err(); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}

	return &job, nil
}

// Len returns the number of pending jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
