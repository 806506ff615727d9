// Package main implements a mock cloud-code key-value server for local
// development. It implements the provider protocol the cloud code transport
// speaks (PUT and GET on /codes/{code} with a TTL header) without requiring a
// real hosting provider.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const defaultTTL = 24 * time.Hour

type kvStore struct {
	mu      sync.Mutex
	entries map[string]kvEntry
	nowFunc func() time.Time
}

type kvEntry struct {
	payload   []byte
	expiresAt time.Time
}

func newKVStore() *kvStore {
	return &kvStore{
		entries: make(map[string]kvEntry),
		nowFunc: time.Now,
	}
}

func (s *kvStore) put(code string, payload []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[code] = kvEntry{payload: payload, expiresAt: s.nowFunc().Add(ttl)}
}

// get returns the stored payload, or false when the code is unknown or
// expired. Expired entries are dropped on access.
func (s *kvStore) get(code string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[code]
	if !ok {
		return nil, false
	}
	if s.nowFunc().After(e.expiresAt) {
		delete(s.entries, code)
		return nil, false
	}
	return e.payload, true
}

func main() {
	port := flag.Int("port", 8090, "port to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := newKVStore()

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /codes/{code}", putHandler(logger, store))
	mux.HandleFunc("GET /codes/{code}", getHandler(logger, store))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock cloud-code server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func putHandler(logger *slog.Logger, store *kvStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body", http.StatusBadRequest)
			return
		}
		if len(payload) == 0 {
			http.Error(w, "empty payload", http.StatusBadRequest)
			return
		}

		ttl := defaultTTL
		if h := r.Header.Get("X-TTL-Seconds"); h != "" {
			if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
				ttl = time.Duration(secs) * time.Second
			}
		}

		store.put(code, payload, ttl)
		w.WriteHeader(http.StatusNoContent)
		logger.Info("stored code", "code", code, "bytes", len(payload), "ttl", ttl)
	}
}

func getHandler(logger *slog.Logger, store *kvStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")

		payload, ok := store.get(code)
		if !ok {
			http.Error(w, "code not found", http.StatusNotFound)
			logger.Info("code miss", "code", code)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		w.Write(payload)
		logger.Info("redeemed code", "code", code, "bytes", len(payload))
	}
}
