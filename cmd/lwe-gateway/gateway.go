package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/luxfi/lwe/internal/queue"
	"github.com/luxfi/lwe/internal/storage"
)

// maxObjectBytes bounds uploaded streams and key sets.
const maxObjectBytes = 256 << 20

type gateway struct {
	queue   queue.Queue
	storage storage.Storage
}

// newGateway returns the HTTP API that stores objects and enqueues jobs.
func newGateway(q queue.Queue, store storage.Storage) http.Handler {
	g := &gateway{queue: q, storage: store}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", g.handleStatus)
	mux.HandleFunc("POST /store", g.handleStore)
	mux.HandleFunc("GET /object/{handle}", g.handleObject)
	mux.HandleFunc("POST /jobs", g.handleSubmit)
	mux.HandleFunc("GET /job/{id}", g.handleJob)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusResponse is the body of /status.
type StatusResponse struct {
	Status  string `json:"status"`
	Pending int64  `json:"pending"`
}

func (g *gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	n, err := g.queue.Len(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "running", Pending: n})
}

// StoreResponse is the body of /store.
type StoreResponse struct {
	Handle string `json:"handle"`
}

func (g *gateway) handleStore(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxObjectBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty object", http.StatusBadRequest)
		return
	}

	handle, err := g.storage.Store(r.Context(), data)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrStorageFull) {
			status = http.StatusInsufficientStorage
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, StoreResponse{Handle: string(handle)})
}

func (g *gateway) handleObject(w http.ResponseWriter, r *http.Request) {
	handle, err := storage.ParseHandle(r.PathValue("handle"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := g.storage.Load(r.Context(), handle)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// SubmitRequest is the body of /jobs. All operands are storage handles.
type SubmitRequest struct {
	Operation string `json:"op"`
	Keys      string `json:"keys"`
	LHS       string `json:"lhs"`
	RHS       string `json:"rhs,omitempty"`
}

// SubmitResponse is the response of /jobs.
type SubmitResponse struct {
	ID string `json:"id"`
}

func (g *gateway) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	op, err := queue.ParseOperation(req.Operation)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	operands := []string{req.Keys, req.LHS}
	if op.Binary() {
		operands = append(operands, req.RHS)
	}
	for _, s := range operands {
		handle, err := storage.ParseHandle(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ok, err := g.storage.Exists(r.Context(), handle)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, fmt.Sprintf("object %s not found", handle), http.StatusNotFound)
			return
		}
	}

	id, err := newJobID()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	job := &queue.Job{
		ID:         id,
		Operation:  op,
		KeysHandle: req.Keys,
		LHSHandle:  req.LHS,
	}
	if op.Binary() {
		job.RHSHandle = req.RHS
	}
	if err := g.queue.Push(r.Context(), job); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: id})
}

// JobResponse is the response of /job/{id}.
type JobResponse struct {
	ID     string `json:"id"`
	Op     string `json:"op"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (g *gateway) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := g.queue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrJobNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, JobResponse{
		ID:     job.ID,
		Op:     string(job.Operation),
		Status: job.Status.String(),
		Result: job.ResultHandle,
		Error:  job.Error,
	})
}

func newJobID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("job id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
