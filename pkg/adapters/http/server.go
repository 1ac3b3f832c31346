package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/coupler/pkg/controllable"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Server exposes an Emulator through the WebServerControl HTTP surface.
type Server struct {
	Emulator *Emulator
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler for the emulator.
func NewHandler(em *Emulator) http.Handler {
	s := &Server{Emulator: em, logger: em.logger}
	r := chi.NewRouter()

	r.Get("/check", s.Check)
	r.Get("/waiting", s.Waiting)
	r.Get("/continue", s.Continue)
	r.Post("/set/controllable", s.SetControllable)
	r.Get("/get/controllable", s.GetControllable)
	r.Get("/terminate", s.Terminate)

	return r
}

// Serve runs the emulator on addr until it is terminated or ctx is done.
func Serve(ctx context.Context, addr string, em *Emulator) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serveListener(ctx, ln, em)
}

func serveListener(ctx context.Context, ln net.Listener, em *Emulator) error {
	srv := &http.Server{Handler: NewHandler(em), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	em.logger.Info("emulator listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case <-em.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("emulator shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("emulator response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Check handles GET /check.
func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	s.Emulator.record(Call{Method: r.Method, Path: r.URL.Path})
	writeJSON(w, http.StatusOK, map[string]any{})
}

// Waiting handles GET /waiting.
func (s *Server) Waiting(w http.ResponseWriter, r *http.Request) {
	waiting, flag := s.Emulator.status()
	s.Emulator.record(Call{Method: r.Method, Path: r.URL.Path, Flag: flag})

	resp := map[string]any{"waiting": waiting}
	if waiting {
		resp["execute_on_flag"] = flag
	}
	writeJSON(w, http.StatusOK, resp)
}

// Continue handles GET /continue.
func (s *Server) Continue(w http.ResponseWriter, r *http.Request) {
	_, flag := s.Emulator.status()
	s.Emulator.record(Call{Method: r.Method, Path: r.URL.Path, Flag: flag})

	if err := s.Emulator.resume(r.Context()); err != nil {
		writeError(w, http.StatusBadRequest, err)
		s.logger.Warn("continue rejected", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

type setRequest struct {
	Name  string           `json:"name"`
	Type  domain.ValueKind `json:"type"`
	Value any              `json:"value"`
}

// SetControllable handles POST /set/controllable.
func (s *Server) SetControllable(w http.ResponseWriter, r *http.Request) {
	var body setRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	s.Emulator.record(Call{Method: r.Method, Path: r.URL.Path, Name: body.Name})

	if waiting, _ := s.Emulator.status(); !waiting {
		writeError(w, http.StatusBadRequest, errNotWaiting)
		return
	}

	kind := body.Type
	if kind == "" {
		declared, ok := s.Emulator.values.Kind(body.Name)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%q: %w", body.Name, domain.ErrUndeclaredPath))
			return
		}
		kind = declared
	}
	value, err := controllable.Coerce(kind, body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s: %w", body.Name, err))
		return
	}
	if err := s.Emulator.values.Put(domain.Controllable{Path: body.Name, Kind: kind, Value: value}); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Debug("controllable set", "path", body.Name, "kind", kind)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// GetControllable handles GET /get/controllable?name=<path>.
func (s *Server) GetControllable(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	c, ok := s.Emulator.values.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%q: %w", name, domain.ErrUndeclaredPath))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Terminate handles GET /terminate.
func (s *Server) Terminate(w http.ResponseWriter, r *http.Request) {
	s.Emulator.record(Call{Method: r.Method, Path: r.URL.Path})
	writeJSON(w, http.StatusOK, map[string]any{})
	s.Emulator.terminate()
}
