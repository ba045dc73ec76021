package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/marhaba-voice/marhaba/pkg/evi"
)

// ErrSessionActive is returned when Start is called on a runner that has
// already started. Runners are single-use: one connection attempt, no
// restart.
var ErrSessionActive = errors.New("chat: session already started")

// Channel is the live connection a runner drives. evi.ChatSocket satisfies
// it; tests substitute fakes.
type Channel interface {
	SendAudio(data []byte) error
	Close() error
	Done() <-chan struct{}
}

// ConnectFunc establishes one channel, delivering events to h. It makes
// exactly one attempt.
type ConnectFunc func(ctx context.Context, h evi.Handler) (Channel, error)

// AudioSource produces raw microphone frames. Read blocks until data is
// available and returns an error once the source is closed.
type AudioSource interface {
	Read(p []byte) (n int, err error)
	Close() error
}

// PlaybackMonitor reports whether assistant audio is still playing. With
// interruption disabled the runner mutes the microphone while playback is
// pending.
type PlaybackMonitor interface {
	Pending() bool
}

const defaultFrameSize = 4096

// RunnerOptions configures a session runner.
type RunnerOptions struct {
	Connect ConnectFunc
	Handler evi.Handler

	// Source is the microphone. Nil means audio capture is unavailable;
	// the session still runs, listening only, and the handler is told
	// once via OnError.
	Source AudioSource

	// Monitor and AllowInterrupt control microphone muting during
	// assistant playback. A nil Monitor never mutes.
	Monitor        PlaybackMonitor
	AllowInterrupt bool

	FrameSize int
	Logger    *slog.Logger
}

// Runner owns one session: it connects, pumps microphone audio, escalates
// fatal channel errors, and guarantees the handler sees OnClose exactly
// once whether the connection succeeded or not.
type Runner struct {
	opts   RunnerOptions
	logger *slog.Logger

	started   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	fatal chan struct{} // closed when an error event demands shutdown
}

// NewRunner returns an unstarted runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = defaultFrameSize
	}
	return &Runner{
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
		fatal:  make(chan struct{}),
	}
}

// Start launches the session. It returns ErrSessionActive on a second
// call; a runner never reconnects.
func (r *Runner) Start(ctx context.Context) error {
	if r.opts.Connect == nil || r.opts.Handler == nil {
		return errors.New("chat: runner needs a connect func and a handler")
	}
	if !r.started.CompareAndSwap(false, true) {
		return ErrSessionActive
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelMu.Lock()
	r.cancel = cancel
	r.cancelMu.Unlock()
	go r.run(ctx)
	return nil
}

// Stop ends the session. Safe to call at any time, including before Start
// or concurrently with it.
func (r *Runner) Stop() {
	r.cancelMu.Lock()
	cancel := r.cancel
	r.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the session has fully wound down and OnClose has
// been delivered.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.cancel()

	h := r.opts.Handler

	ch, err := r.opts.Connect(ctx, &escalatingHandler{inner: h, runner: r})
	if err != nil {
		h.OnError(fmt.Errorf("connect: %w", err))
		r.closeOnce.Do(h.OnClose)
		return
	}

	if r.opts.Source == nil {
		// Listening-only session: tell the user once, then idle.
		h.OnError(errors.New("microphone unavailable; continuing without audio input"))
	} else {
		go r.pumpAudio(ctx, ch)
	}

	select {
	case <-ctx.Done():
	case <-r.fatal:
	case <-ch.Done():
	}

	if err := ch.Close(); err != nil {
		r.logger.Debug("channel close", "err", err)
	}
	<-ch.Done()

	if r.opts.Source != nil {
		r.opts.Source.Close()
	}
}

// pumpAudio forwards microphone frames to the channel until the source or
// the channel gives out.
func (r *Runner) pumpAudio(ctx context.Context, ch Channel) {
	buf := make([]byte, r.opts.FrameSize)
	for {
		n, err := r.opts.Source.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				r.logger.Warn("microphone read failed", "err", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		if r.muted() {
			continue
		}
		if err := ch.SendAudio(buf[:n]); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("audio send failed", "err", err)
			}
			return
		}
	}
}

// muted reports whether microphone frames should be dropped right now.
func (r *Runner) muted() bool {
	if r.opts.AllowInterrupt || r.opts.Monitor == nil {
		return false
	}
	return r.opts.Monitor.Pending()
}

// escalate shuts the session down after a fatal channel error. The error
// event itself has already been delivered to the handler.
func (r *Runner) escalate() {
	select {
	case <-r.fatal:
	default:
		close(r.fatal)
	}
}

// escalatingHandler forwards every callback and additionally treats error
// events as fatal to the session. OnClose passes through the runner's
// once-guard so the handler sees it a single time on every path.
type escalatingHandler struct {
	inner  evi.Handler
	runner *Runner
}

func (e *escalatingHandler) OnOpen() { e.inner.OnOpen() }

func (e *escalatingHandler) OnMessage(event evi.Event) {
	e.inner.OnMessage(event)
	if _, fatal := event.(evi.ErrorEvent); fatal {
		e.runner.escalate()
	}
}

func (e *escalatingHandler) OnClose() {
	e.runner.closeOnce.Do(e.inner.OnClose)
}

func (e *escalatingHandler) OnError(err error) { e.inner.OnError(err) }
