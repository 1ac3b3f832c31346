package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/aretw0/coupler/internal/config"
	"github.com/aretw0/coupler/internal/logging"
)

// SignalContext is cancelled on SIGINT or SIGTERM and remembers which.
type SignalContext struct {
	context.Context
	Cancel context.CancelFunc

	mu  sync.Mutex
	sig os.Signal
}

// NewSignalContext starts listening for interrupts until the context ends.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, Cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.mu.Lock()
			sc.sig = sig
			sc.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sig
}

// newLogger builds the stderr logger from the log section. A non-empty
// override wins over the configured level.
func newLogger(cfg config.LogConfig, override string) (*slog.Logger, error) {
	name := cfg.Level
	if override != "" {
		name = override
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, level, cfg.JSON), nil
}

// loadConfig reads the configuration and resolves the model path against
// the directory of the configuration file.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if path != "" && cfg.Model.Path != "" && !filepath.IsAbs(cfg.Model.Path) {
		cfg.Model.Path = filepath.Join(filepath.Dir(path), cfg.Model.Path)
	}
	return cfg, nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
