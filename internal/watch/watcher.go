// Package watch polls for new commits and feeds one range at a time into
// the pipeline. Runs are strictly serialized: the next poll is not
// processed until the previous run's working-tree cleanup has finished.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RunFunc executes one pipeline run for a commit range. It must leave the
// working tree restored before returning.
type RunFunc func(ctx context.Context, baseRef, headRef string) error

// HeadResolver resolves refs to SHAs. Satisfied by gitx.Client.
type HeadResolver interface {
	RevParse(ref string) (string, error)
}

// Event is the optional structured payload naming an explicit commit
// range. When absent, the watcher falls back to comparing HEAD against
// the last SHA it saw.
type Event struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Watcher polls on a fixed interval, processing at most one detected
// commit range per poll.
type Watcher struct {
	git       HeadResolver
	run       RunFunc
	interval  time.Duration
	eventFile string
	log       *zap.Logger

	stopped  atomic.Bool
	lastSeen string
}

// New creates a Watcher. eventFile may be empty to poll HEAD movement only.
func New(git HeadResolver, run RunFunc, interval time.Duration, eventFile string, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watcher{git: git, run: run, interval: interval, eventFile: eventFile, log: log}
}

// Stop requests a cooperative shutdown. The flag is checked between the
// sleep and the next poll; in-flight work is allowed to finish.
func (w *Watcher) Stop() {
	w.stopped.Store(true)
}

// Watch polls until stopped or the context is cancelled. The initial HEAD
// is recorded without triggering a run.
func (w *Watcher) Watch(ctx context.Context) error {
	head, err := w.git.RevParse("HEAD")
	if err != nil {
		return fmt.Errorf("resolve initial HEAD: %w", err)
	}
	w.lastSeen = head
	w.log.Info("watch started", zap.String("head", head), zap.Duration("interval", w.interval))

	for {
		select {
		case <-time.After(w.interval):
		case <-ctx.Done():
			return nil
		}
		if w.stopped.Load() {
			return nil
		}
		w.poll(ctx)
	}
}

// poll detects at most one commit range and runs it to completion.
func (w *Watcher) poll(ctx context.Context) {
	if base, head, ok := w.consumeEvent(); ok {
		w.runRange(ctx, base, head)
		return
	}

	head, err := w.git.RevParse("HEAD")
	if err != nil {
		w.log.Warn("poll failed", zap.Error(err))
		return
	}
	if head == w.lastSeen {
		return
	}
	base := w.lastSeen
	w.lastSeen = head
	w.runRange(ctx, base, head)
}

// consumeEvent reads and removes the event payload file if present. The
// file is removed regardless of whether the run succeeds.
func (w *Watcher) consumeEvent() (base, head string, ok bool) {
	if w.eventFile == "" {
		return "", "", false
	}
	data, err := os.ReadFile(w.eventFile)
	if err != nil {
		return "", "", false
	}
	defer os.Remove(w.eventFile)

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		w.log.Warn("invalid event payload", zap.Error(err))
		return "", "", false
	}
	if ev.Before == "" || ev.After == "" {
		w.log.Warn("event payload missing before/after SHAs")
		return "", "", false
	}
	return ev.Before, ev.After, true
}

func (w *Watcher) runRange(ctx context.Context, base, head string) {
	w.log.Info("commit range detected", zap.String("base", base), zap.String("head", head))
	if err := w.run(ctx, base, head); err != nil {
		w.log.Error("run failed", zap.Error(err))
	}
}
