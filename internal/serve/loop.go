// Package serve runs the single-threaded request loop: accept one
// connection, answer one request, close, repeat.
package serve

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"cloudpico-node/internal/router"
	"cloudpico-node/internal/sensor"
	"cloudpico-node/internal/views"
)

const (
	DefaultPollTimeout    = 250 * time.Millisecond
	DefaultReadTimeout    = 5 * time.Second
	DefaultMaxHeaderBytes = http.DefaultMaxHeaderBytes

	// headerSlack covers what bufio reads ahead of the header block.
	headerSlack = 4096

	contentTypeText = "text/plain; charset=utf-8"
	allowedMethods  = "GET, HEAD"
)

type State int32

const (
	Idle State = iota
	Dispatching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type Outcome int

const (
	// NoRequest means the accept deadline passed or the connection was
	// dropped before a request could be answered.
	NoRequest Outcome = iota
	// Handled means a response was written in full.
	Handled
)

// Hook runs after every fully written response. It is called on the loop
// goroutine and must return promptly; long work belongs on its own
// goroutine.
type Hook func()

// Routes resolves a request path. *router.Router satisfies it.
type Routes interface {
	Route(path string) (router.Handler, bool)
}

type Options struct {
	// PollTimeout bounds each Accept so Run can observe cancellation.
	PollTimeout time.Duration
	// ReadTimeout bounds reading the request and writing the response.
	ReadTimeout time.Duration
	// MaxHeaderBytes caps the request line plus headers. Larger requests
	// get 431.
	MaxHeaderBytes int64
	Logger         *slog.Logger
	Hooks          []Hook
}

type Loop struct {
	ln     net.Listener
	routes Routes
	opts   Options
	log    *slog.Logger
	state  atomic.Int32
}

func New(ln net.Listener, routes Routes, opts Options) *Loop {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.MaxHeaderBytes <= 0 {
		opts.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{ln: ln, routes: routes, opts: opts, log: logger}
}

func (l *Loop) State() State { return State(l.state.Load()) }

// Addr is the listener's bound address.
func (l *Loop) Addr() net.Addr { return l.ln.Addr() }

// Run polls until ctx is cancelled, which is its only clean exit. Transport
// faults are logged and the loop continues. A closed listener ends Run
// with an error unless ctx is already done.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("serving", "addr", l.ln.Addr().String())
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, err := l.Poll(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrTransport):
			l.log.Warn("transport fault", "err", err)
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Poll runs one cycle: wait up to PollTimeout for a connection, then read,
// dispatch and answer a single request on it.
func (l *Loop) Poll(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return NoRequest, err
	}

	if d, ok := l.ln.(deadliner); ok {
		if err := d.SetDeadline(time.Now().Add(l.opts.PollTimeout)); err != nil {
			return NoRequest, &TransportError{Op: "set accept deadline", Err: err}
		}
	}

	conn, err := l.ln.Accept()
	if err != nil {
		if isTimeout(err) {
			return NoRequest, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return NoRequest, fmt.Errorf("serve: listener closed: %w", err)
		}
		return NoRequest, &TransportError{Op: "accept", Err: err}
	}

	l.state.Store(int32(Dispatching))
	defer l.state.Store(int32(Idle))

	return l.serveConn(conn)
}

func (l *Loop) serveConn(conn net.Conn) (Outcome, error) {
	defer func() {
		if err := conn.Close(); err != nil {
			l.log.Debug("close connection", "err", err)
		}
	}()

	start := time.Now()
	// Both directions share one budget so a stalled client cannot hold the
	// loop for longer than ReadTimeout.
	if err := conn.SetDeadline(start.Add(l.opts.ReadTimeout)); err != nil {
		return NoRequest, &TransportError{Op: "set deadline", Err: err}
	}

	cr := &connReader{r: conn}
	lr := &io.LimitedReader{R: cr, N: l.opts.MaxHeaderBytes + headerSlack}
	req, err := http.ReadRequest(bufio.NewReader(lr))
	var res response
	switch {
	case err == nil:
		res = l.dispatch(req)
	case isReadFault(cr.err):
		// ReadRequest reports a cut-off request line as malformed; the
		// connection error is the real cause.
		return NoRequest, &TransportError{Op: "read", Err: cr.err}
	case lr.N <= 0:
		l.log.Debug("request header too large", "remote", remoteAddr(conn), "limit", l.opts.MaxHeaderBytes)
		res = plain(http.StatusRequestHeaderFieldsTooLarge)
	case isReadFault(err):
		return NoRequest, &TransportError{Op: "read", Err: err}
	default:
		l.log.Debug("malformed request", "remote", remoteAddr(conn), "err", err)
		res = plain(http.StatusBadRequest)
	}

	if err := writeResponse(conn, req, res); err != nil {
		return NoRequest, &TransportError{Op: "write", Err: err}
	}

	method, path := "", ""
	if req != nil {
		method, path = req.Method, req.URL.Path
	}
	l.log.Info("http request",
		"method", method,
		"path", path,
		"status", res.status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	for _, h := range l.opts.Hooks {
		h()
	}
	return Handled, nil
}

type response struct {
	status int
	doc    views.Document
	allow  string
}

func plain(status int) response {
	return response{
		status: status,
		doc: views.Document{
			ContentType: contentTypeText,
			Body:        []byte(http.StatusText(status) + "\n"),
		},
	}
}

func (l *Loop) dispatch(req *http.Request) (res response) {
	h, ok := l.routes.Route(req.URL.Path)
	if !ok {
		return plain(http.StatusNotFound)
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		res = plain(http.StatusMethodNotAllowed)
		res.allow = allowedMethods
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			l.log.Error("handler panic", "path", req.URL.Path, "panic", p)
			res = plain(http.StatusInternalServerError)
		}
	}()

	doc, err := h(req)
	if err != nil {
		if errors.Is(err, sensor.ErrPeripheral) {
			l.log.Warn("peripheral fault", "path", req.URL.Path, "err", err)
			return plain(http.StatusServiceUnavailable)
		}
		l.log.Error("handler failed", "path", req.URL.Path, "err", err)
		return plain(http.StatusInternalServerError)
	}
	return response{status: http.StatusOK, doc: doc}
}

// writeResponse writes a complete HTTP/1.1 response with an explicit
// Content-Length and Connection: close. HEAD gets the same headers and no
// body. req is nil when the request could not be parsed.
func writeResponse(w io.Writer, req *http.Request, res response) error {
	header := http.Header{}
	header.Set("Content-Type", res.doc.ContentType)
	if res.allow != "" {
		header.Set("Allow", res.allow)
	}

	resp := &http.Response{
		StatusCode:    res.status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		ContentLength: int64(len(res.doc.Body)),
		Close:         true,
		Request:       req,
	}
	if len(res.doc.Body) > 0 && (req == nil || req.Method != http.MethodHead) {
		resp.Body = io.NopCloser(bytes.NewReader(res.doc.Body))
	}

	bw := bufio.NewWriter(w)
	if err := resp.Write(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// connReader keeps the last error returned by the connection.
type connReader struct {
	r   io.Reader
	err error
}

func (c *connReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil {
		c.err = err
	}
	return n, err
}

func isReadFault(err error) bool {
	return err != nil && (isTimeout(err) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
