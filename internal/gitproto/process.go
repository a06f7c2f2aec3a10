package gitproto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"graderservice/internal/errdefs"
	"graderservice/internal/logging"
)

type Service string

const (
	UploadPack  Service = "git-upload-pack"
	ReceivePack Service = "git-receive-pack"
)

func ParseService(s string) (Service, error) {
	switch Service(s) {
	case UploadPack, ReceivePack:
		return Service(s), nil
	default:
		return "", fmt.Errorf("%w: unsupported service %q", errdefs.ErrBadRequest, s)
	}
}

func (s Service) String() string {
	return string(s)
}

func (s Service) subcommand() string {
	return string(s)[len("git-"):]
}

func (s Service) IsWrite() bool {
	return s == ReceivePack
}

const (
	waitDelay      = 5 * time.Second
	maxStderrBytes = 64 << 10
)

var ErrIdleTimeout = errors.New("transfer idle timeout")

// Runner spawns git processes for the smart protocol. At most
// maxConcurrent processes run at a time; others wait for a slot.
type Runner struct {
	gitBinary   string
	idleTimeout time.Duration
	slots       *semaphore.Weighted
	logger      *logging.Logger
}

func NewRunner(gitBinary string, idleTimeout time.Duration, maxConcurrent int64, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{
		gitBinary:   gitBinary,
		idleTimeout: idleTimeout,
		slots:       semaphore.NewWeighted(maxConcurrent),
		logger:      logger,
	}
}

// Advertise writes the ref advertisement of dir to out.
func (r *Runner) Advertise(ctx context.Context, svc Service, dir string, out io.Writer) error {
	return r.run(ctx, svc, dir, []string{"--stateless-rpc", "--advertise-refs", dir}, nil, out, nil)
}

// RPC streams in into the process and its output into out. onAbort, if
// set, is called when the process is killed before in was drained, so the
// caller can unblock a pending read of in.
func (r *Runner) RPC(ctx context.Context, svc Service, dir string, in io.Reader, out io.Writer, onAbort func()) error {
	return r.run(ctx, svc, dir, []string{"--stateless-rpc", dir}, in, out, onAbort)
}

func (r *Runner) run(ctx context.Context, svc Service, dir string, args []string, in io.Reader, out io.Writer, onAbort func()) error {
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for transfer slot: %w", err)
	}
	defer r.slots.Release(1)

	// Not derived from an errgroup context: that one is cancelled as soon
	// as Wait returns, which would kill a process that is still exiting.
	procCtx, cancelProc := context.WithCancel(ctx)
	defer cancelProc()

	idle := newIdleTimer(r.idleTimeout, cancelProc)
	defer idle.stop()

	cmd := exec.CommandContext(procCtx, r.gitBinary, append([]string{svc.subcommand()}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.WaitDelay = waitDelay
	stderr := &limitedBuffer{max: maxStderrBytes}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", errdefs.ErrProtocol, err)
	}
	var stdin io.WriteCloser
	if in != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("%w: stdin pipe: %v", errdefs.ErrProtocol, err)
		}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", errdefs.ErrProtocol, svc, err)
	}

	var aborted atomic.Bool
	if onAbort != nil {
		stopAbort := context.AfterFunc(procCtx, func() {
			aborted.Store(true)
			onAbort()
		})
		defer stopAbort()
	}

	var copies errgroup.Group
	if in != nil {
		copies.Go(func() error {
			_, err := io.Copy(stdin, &activityReader{r: in, idle: idle})
			_ = stdin.Close()
			if err != nil && !isClosedPipe(err) {
				cancelProc()
				return fmt.Errorf("read request: %w", err)
			}
			return nil
		})
	}

	_, outErr := io.Copy(&activityWriter{w: out, idle: idle}, stdout)
	if outErr != nil {
		cancelProc()
	}
	waitErr := cmd.Wait()

	// Copying into stdin is finished once the process is gone, unless the
	// reader itself is stuck; onAbort unblocks it.
	inDone := make(chan error, 1)
	go func() { inDone <- copies.Wait() }()
	var inErr error
	select {
	case inErr = <-inDone:
	default:
		cancelProc()
		inErr = <-inDone
	}

	fields := []zap.Field{
		zap.String("service", svc.String()),
		zap.String("dir", dir),
		zap.Duration("elapsed", time.Since(start)),
	}

	// A client that hangs up after reading everything cancels ctx, but
	// the transfer itself already succeeded.
	if waitErr == nil && outErr == nil && (inErr == nil || aborted.Load()) {
		r.logger.Debug(ctx, "git transfer finished", fields...)
		return nil
	}

	switch {
	case idle.fired():
		r.logger.Warn(ctx, "git transfer idle timeout", fields...)
		return fmt.Errorf("%w: %w", errdefs.ErrProtocol, ErrIdleTimeout)
	case ctx.Err() != nil:
		r.logger.Info(ctx, "git transfer cancelled by client", fields...)
		return ctx.Err()
	case outErr != nil:
		r.logger.Warn(ctx, "git transfer: writing response failed", append(fields, zap.Error(outErr))...)
		return fmt.Errorf("%w: write response: %v", errdefs.ErrProtocol, outErr)
	case waitErr != nil:
		r.logger.Error(ctx, "git process failed",
			append(fields, zap.Error(waitErr), zap.String("stderr", stderr.String()))...)
		return fmt.Errorf("%w: %s: %v", errdefs.ErrProtocol, svc, waitErr)
	case inErr != nil && !aborted.Load():
		r.logger.Warn(ctx, "git transfer: reading request failed", append(fields, zap.Error(inErr))...)
		return fmt.Errorf("%w: %v", errdefs.ErrProtocol, inErr)
	}
	return nil
}

// The process may exit before consuming all input, e.g. upload-pack once
// it has enough haves.
func isClosedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

type idleTimer struct {
	d       time.Duration
	t       *time.Timer
	didFire atomic.Bool
}

func newIdleTimer(d time.Duration, onFire func()) *idleTimer {
	it := &idleTimer{d: d}
	it.t = time.AfterFunc(d, func() {
		it.didFire.Store(true)
		onFire()
	})
	return it
}

func (it *idleTimer) touch() {
	if !it.didFire.Load() {
		it.t.Reset(it.d)
	}
}

func (it *idleTimer) fired() bool {
	return it.didFire.Load()
}

func (it *idleTimer) stop() {
	it.t.Stop()
}

type activityReader struct {
	r    io.Reader
	idle *idleTimer
}

func (a *activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.idle.touch()
	}
	return n, err
}

type activityWriter struct {
	w    io.Writer
	idle *idleTimer
}

func (a *activityWriter) Write(p []byte) (int, error) {
	n, err := a.w.Write(p)
	if n > 0 {
		a.idle.touch()
	}
	return n, err
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
