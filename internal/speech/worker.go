package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Speak after the worker has been closed.
var ErrClosed = errors.New("speech worker is closed")

type job struct {
	text   string
	result chan error
}

// Worker serializes playback on a single goroutine.
type Worker struct {
	provider Provider
	logger   *slog.Logger

	jobs chan job
	quit chan struct{}
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewWorker starts a worker playing through provider.
func NewWorker(provider Provider, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		provider: provider,
		logger:   logger,
		jobs:     make(chan job),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go w.run()
	return w
}

// Speak blocks until text has been played or playback failed.
//
// ctx only applies while the request waits for the worker; once playback
// has started it runs to completion.
func (w *Worker) Speak(ctx context.Context, text string) error {
	j := job{text: text, result: make(chan error, 1)}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return ErrClosed
	}

	return <-j.result
}

// Close stops the worker, interrupting any utterance in progress, and
// waits for the worker goroutine to exit. It is safe to call more than once.
func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.quit)
		w.cancel()
	})
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case j := <-w.jobs:
			j.result <- w.play(j.text)
		}
	}
}

// play acquires an engine for one utterance and always releases it.
func (w *Worker) play(text string) error {
	start := time.Now()

	engine, err := w.provider.NewEngine(w.ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize %s: %w", w.provider.Name(), err)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			w.logger.Warn("failed to release speech engine", "provider", w.provider.Name(), "error", cerr)
		}
	}()

	if err := engine.Say(w.ctx, text); err != nil {
		return err
	}

	w.logger.Debug("utterance played", "provider", w.provider.Name(), "chars", len(text), "duration", time.Since(start))
	return nil
}
