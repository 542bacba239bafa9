// Package server provides the HTTP front end of an LWE key bundle.
//
// The server generates a key bundle at startup and exposes:
//   - /health, /params: status and the active parameter set
//   - /publickey, /evalkeys: binary public material for clients and workers
//   - /encrypt, /decrypt: text to ciphertext stream and back
//   - /evaluate: add, mul and bootstrap on ciphertext streams
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/luxfi/lwe"
	"github.com/luxfi/lwe/internal/queue"
	"github.com/luxfi/lwe/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 20

// Config holds server configuration
type Config struct {
	Address string
	Params  lwe.Parameters
	// AllowDecrypt enables /decrypt. The server holds the secret key, so
	// this is only meant for demos and tests.
	AllowDecrypt bool
	// Storage, when set, receives the evaluation key set at startup so that
	// workers can load it by handle.
	Storage storage.Storage
}

// Server is the LWE server
type Server struct {
	cfg    Config
	params lwe.Parameters
	keys   *lwe.KeyBundle

	pkBytes    []byte
	eksBytes   []byte
	keysHandle storage.Handle

	dec  *lwe.Decryptor
	eval *lwe.Evaluator

	// Encryptors own a PRNG and are not safe for concurrent use.
	encPool sync.Pool
}

// New creates a new server and generates its key bundle.
func New(ctx context.Context, cfg Config) (*Server, error) {
	params := cfg.Params
	keys := lwe.NewKeyGenerator(params).GenKeyBundle()
	return NewWithKeys(ctx, cfg, keys)
}

// NewWithKeys creates a server around an existing key bundle.
func NewWithKeys(ctx context.Context, cfg Config, keys *lwe.KeyBundle) (*Server, error) {
	params := cfg.Params

	pkBytes, err := keys.PublicKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	eksBytes, err := keys.EvaluationKeySet().MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation keys: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		params:   params,
		keys:     keys,
		pkBytes:  pkBytes,
		eksBytes: eksBytes,
		dec:      lwe.NewDecryptor(params, keys.SecretKey),
		eval:     lwe.NewEvaluator(params, keys.EvaluationKeySet()),
	}

	base := lwe.NewEncryptor(params, keys.PublicKey)
	s.encPool = sync.Pool{
		New: func() interface{} {
			return base.ShallowCopy()
		},
	}

	if cfg.Storage != nil {
		handle, err := cfg.Storage.Store(ctx, eksBytes)
		if err != nil {
			return nil, fmt.Errorf("store evaluation keys: %w", err)
		}
		s.keysHandle = handle
		log.Printf("Evaluation keys stored as %s", handle)
	}

	return s, nil
}

// KeyID returns the identity of the server's key bundle.
func (s *Server) KeyID() lwe.KeyID {
	return s.keys.ID
}

// KeysHandle returns the storage handle of the evaluation key set, or ""
// when no storage is configured.
func (s *Server) KeysHandle() storage.Handle {
	return s.keysHandle
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/params", s.handleParams)

	// Key endpoints
	mux.HandleFunc("/publickey", s.handlePublicKey)
	mux.HandleFunc("/evalkeys", s.handleEvalKeys)

	// Scheme operations
	mux.HandleFunc("/encrypt", s.handleEncrypt)
	mux.HandleFunc("/decrypt", s.handleDecrypt)
	mux.HandleFunc("/evaluate", s.handleEvaluate)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeStream(w http.ResponseWriter, cts []*lwe.Ciphertext) {
	data, err := lwe.MarshalStream(cts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// errorStatus maps scheme errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, lwe.ErrNoiseBudgetExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lwe.ErrShapeMismatch),
		errors.Is(err, lwe.ErrOutOfRange),
		errors.Is(err, lwe.ErrKeyMismatch),
		errors.Is(err, lwe.ErrMalformed),
		errors.Is(err, lwe.ErrUnrepresentable),
		errors.Is(err, queue.ErrInvalidOperation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Params     string `json:"params"`
	KeyID      string `json:"key_id"`
	KeysHandle string `json:"keys_handle,omitempty"`
	Decrypt    bool   `json:"decrypt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{
		Status:     "ok",
		Params:     s.params.String(),
		KeyID:      s.keys.ID.String(),
		KeysHandle: string(s.keysHandle),
		Decrypt:    s.cfg.AllowDecrypt,
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.params.Literal())
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(s.pkBytes)
}

func (s *Server) handleEvalKeys(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(s.eksBytes)
}

// EncryptRequest is the request for encryption
type EncryptRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var req EncryptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	enc := s.encPool.Get().(*lwe.Encryptor)
	defer s.encPool.Put(enc)

	cts, err := enc.EncryptString(req.Text)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	writeStream(w, cts)
}

// DecryptResponse is the response of /decrypt.
type DecryptResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if !s.cfg.AllowDecrypt {
		http.Error(w, "decryption disabled", http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cts, err := lwe.UnmarshalStream(data)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}

	text, err := s.dec.DecryptString(cts)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, DecryptResponse{Text: text})
}

// EvaluateRequest is the request for homomorphic evaluation
type EvaluateRequest struct {
	Operation string `json:"op"`              // add, mul, bootstrap
	Left      []byte `json:"left"`            // ciphertext stream
	Right     []byte `json:"right,omitempty"` // omitted for bootstrap
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	op, err := queue.ParseOperation(req.Operation)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := op.Apply(s.eval, req.Left, req.Right)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(result)
}
