// Package server exposes the model catalog over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	sync "github.com/sasha-s/go-deadlock"

	"github.com/born-ml/zoo/internal/arch"
	"github.com/born-ml/zoo/internal/backend/cpu"
	"github.com/born-ml/zoo/internal/config"
	"github.com/born-ml/zoo/internal/dataset"
	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/internal/tensor"
	"github.com/born-ml/zoo/internal/zoo"
)

// ModelInfo is one element of the /models listing.
type ModelInfo struct {
	Name       string       `json:"name"`
	Dataset    string       `json:"dataset"`
	InputShape tensor.Shape `json:"input_shape"`
	Parameters int          `json:"parameters"`
}

// ModelSummary is the /models/{name} response.
type ModelSummary struct {
	Name    string `json:"name"`
	Dataset string `json:"dataset"`
	*arch.Summary
}

// DatasetInfo is the /datasets/{name} response.
type DatasetInfo struct {
	Name    string       `json:"name"`
	Shape   tensor.Shape `json:"shape"`
	Classes int          `json:"classes"`
}

// Info is the /info response.
type Info struct {
	Version  string       `json:"version"`
	Backend  string       `json:"backend"`
	Workers  int          `json:"workers"`
	Features cpu.Features `json:"features"`
}

// Server serves catalog metadata. Summaries are computed on first request
// and cached for the life of the process.
type Server struct {
	Router *mux.Router

	cfg     config.Config
	version string
	backend *cpu.CPUBackend

	mu        sync.Mutex
	summaries map[string]*ModelSummary
}

// New creates a server and computes the summaries listed in cfg.Preload.
func New(cfg config.Config, version string) (*Server, error) {
	s := &Server{
		Router:    mux.NewRouter(),
		cfg:       cfg,
		version:   version,
		backend:   cpu.NewWithConfig(parallel.WithWorkers(cfg.Workers)),
		summaries: make(map[string]*ModelSummary),
	}
	for _, name := range cfg.Preload {
		if _, err := s.summary(name); err != nil {
			return nil, fmt.Errorf("preload %s: %w", name, err)
		}
		log.Printf("[server] preloaded summary for %s", name)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Router.HandleFunc("/models", s.handleModels).Methods("GET")
	s.Router.HandleFunc("/models/{name}", s.handleModel).Methods("GET")
	s.Router.HandleFunc("/datasets/{name}", s.handleDataset).Methods("GET")
	s.Router.HandleFunc("/info", s.handleInfo).Methods("GET")
}

// summary returns the cached summary for name, computing it on a miss.
func (s *Server) summary(name string) (*ModelSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ms, ok := s.summaries[name]; ok {
		return ms, nil
	}
	e, err := zoo.Describe(name)
	if err != nil {
		return nil, err
	}
	sum, err := e.Summarize()
	if err != nil {
		return nil, err
	}
	ms := &ModelSummary{Name: e.Name, Dataset: e.Dataset.Name, Summary: sum}
	s.summaries[name] = ms
	return ms, nil
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	names := zoo.Names()
	models := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		e, err := zoo.Describe(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		models = append(models, ModelInfo{
			Name:       e.Name,
			Dataset:    e.Dataset.Name,
			InputShape: e.Dataset.Shape,
			Parameters: e.NumParameters(),
		})
	}
	jsonResponse(w, models)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ms, err := s.summary(name)
	if errors.Is(err, zoo.ErrUnknownModel) {
		http.Error(w, "no such model", http.StatusNotFound)
		return
	} else if err != nil {
		log.Printf("[server] summary %s: %v", name, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, ms)
}

// handleDataset accepts either a dataset identifier or a model name.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ds, ok := dataset.ByName(name)
	if !ok {
		if !zoo.Has(name) {
			http.Error(w, "no such dataset or model", http.StatusNotFound)
			return
		}
		id, shape := zoo.GetDataset(name)
		ds = dataset.Dataset{Name: id, Shape: shape}
	}
	jsonResponse(w, DatasetInfo{Name: ds.Name, Shape: ds.Shape, Classes: ds.Classes()})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, Info{
		Version:  s.version,
		Backend:  s.backend.Name(),
		Workers:  s.backend.Workers(),
		Features: s.backend.Features(),
	})
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.cfg.Listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Printf("[server] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func jsonResponse(w http.ResponseWriter, x any) {
	bytes, err := json.Marshal(x)
	if err != nil {
		panic(err)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(bytes)
}
