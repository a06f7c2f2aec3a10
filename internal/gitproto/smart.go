package gitproto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"graderservice/internal/logging"
	"graderservice/internal/model"
)

// PushListener is told about a receive-pack run that exited successfully.
// It runs before the client receives the push report; an error turns the
// response into a 500. The context it gets is not cancelled when the
// client goes away.
type PushListener interface {
	PushCompleted(ctx context.Context, loc *model.RepoLocation, commands []model.RefUpdate) error
}

type SmartServer struct {
	runner *Runner
	logger *logging.Logger
}

func NewSmartServer(runner *Runner, logger *logging.Logger) *SmartServer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SmartServer{runner: runner, logger: logger}
}

func advertisementType(svc Service) string {
	return fmt.Sprintf("application/x-%s-advertisement", svc)
}

func requestType(svc Service) string {
	return fmt.Sprintf("application/x-%s-request", svc)
}

func resultType(svc Service) string {
	return fmt.Sprintf("application/x-%s-result", svc)
}

// ServeInfoRefs answers GET info/refs?service=svc for an existing,
// authorized repository.
func (s *SmartServer) ServeInfoRefs(w http.ResponseWriter, r *http.Request, svc Service, loc *model.RepoLocation) {
	ctx := r.Context()
	w.Header().Set("Content-Type", advertisementType(svc))
	setNoCache(w.Header())

	lw := newLazyWriter(w, ServiceHeader(svc))
	if err := s.runner.Advertise(ctx, svc, loc.Path, lw); err != nil {
		s.fail(ctx, w, lw, "advertise refs", err)
		return
	}
	if err := lw.Close(); err != nil {
		s.logger.Warn(ctx, "finishing advertisement failed", zap.Error(err))
	}
}

// ServeRPC answers POST svc. listener may be nil.
func (s *SmartServer) ServeRPC(w http.ResponseWriter, r *http.Request, svc Service, loc *model.RepoLocation, listener PushListener) {
	ctx := r.Context()
	if got := r.Header.Get("Content-Type"); got != requestType(svc) {
		http.Error(w, fmt.Sprintf("expected content type %s", requestType(svc)), http.StatusBadRequest)
		return
	}

	var body io.Reader = r.Body
	switch enc := r.Header.Get("Content-Encoding"); enc {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, "invalid gzip body", http.StatusBadRequest)
			return
		}
		defer gz.Close()
		body = gz
	default:
		http.Error(w, fmt.Sprintf("unsupported content encoding %q", enc), http.StatusUnsupportedMediaType)
		return
	}

	var sniffer *CommandSniffer
	if svc == ReceivePack {
		sniffer = &CommandSniffer{}
		body = io.TeeReader(body, sniffer)
	}

	rc := http.NewResponseController(w)
	if err := rc.EnableFullDuplex(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug(ctx, "full duplex unavailable", zap.Error(err))
	}

	w.Header().Set("Content-Type", resultType(svc))
	setNoCache(w.Header())

	lw := newLazyWriter(w, nil)
	var out io.Writer = lw
	// The client treats the push as done once it has read the report, so
	// receive-pack output is held back until the listener has run.
	var report *heldOutput
	if svc == ReceivePack {
		report = &heldOutput{max: maxReportBytes}
		out = report
	}

	unblock := func() { _ = rc.SetReadDeadline(time.Now()) }
	if err := s.runner.RPC(ctx, svc, loc.Path, body, out, unblock); err != nil {
		s.fail(ctx, w, lw, "rpc", err)
		return
	}

	if sniffer != nil && listener != nil {
		if err := listener.PushCompleted(context.WithoutCancel(ctx), loc, sniffer.Commands()); err != nil {
			s.fail(ctx, w, lw, "push bookkeeping", err)
			return
		}
	}
	if report != nil {
		if _, err := lw.Write(report.Bytes()); err != nil {
			s.logger.Warn(ctx, "sending push report failed", zap.Error(err))
			return
		}
	}
	if err := lw.Close(); err != nil {
		s.logger.Warn(ctx, "finishing rpc response failed", zap.Error(err))
	}
}

// fail reports err as a 500 if nothing was sent yet. Otherwise the
// connection is torn down so the client never sees a truncated stream as
// complete.
func (s *SmartServer) fail(ctx context.Context, w http.ResponseWriter, lw *lazyWriter, stage string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Error(ctx, "git smart transfer failed",
		zap.String("stage", stage),
		zap.Bool("streamed", lw.Started()),
		zap.Error(err),
	)
	if !lw.Started() {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	panic(http.ErrAbortHandler)
}

func setNoCache(h http.Header) {
	h.Set("Expires", "Fri, 01 Jan 1980 00:00:00 GMT")
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache, max-age=0, must-revalidate")
}

const maxReportBytes = 8 << 20

var errReportTooLarge = errors.New("receive-pack report exceeds limit")

// heldOutput buffers a bounded process output in memory.
type heldOutput struct {
	buf bytes.Buffer
	max int
}

func (h *heldOutput) Write(p []byte) (int, error) {
	if h.buf.Len()+len(p) > h.max {
		return 0, errReportTooLarge
	}
	return h.buf.Write(p)
}

func (h *heldOutput) Bytes() []byte {
	return h.buf.Bytes()
}

// lazyWriter commits the 200 status and prefix only once the first bytes
// arrive, so a process that fails before producing output can still be
// answered with an error status.
type lazyWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	prefix  []byte
	started bool
}

func newLazyWriter(w http.ResponseWriter, prefix []byte) *lazyWriter {
	return &lazyWriter{w: w, rc: http.NewResponseController(w), prefix: prefix}
}

func (l *lazyWriter) Started() bool {
	return l.started
}

func (l *lazyWriter) start() error {
	if l.started {
		return nil
	}
	l.started = true
	l.w.WriteHeader(http.StatusOK)
	if len(l.prefix) > 0 {
		if _, err := l.w.Write(l.prefix); err != nil {
			return err
		}
	}
	return nil
}

func (l *lazyWriter) Write(p []byte) (int, error) {
	if err := l.start(); err != nil {
		return 0, err
	}
	n, err := l.w.Write(p)
	if err != nil {
		return n, err
	}
	if err := l.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

// Close makes sure status and prefix went out even for an empty body.
func (l *lazyWriter) Close() error {
	if err := l.start(); err != nil {
		return err
	}
	if err := l.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
