// Package host runs the native-messaging loop: read a request, answer it,
// repeat until the browser closes stdin.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/b-tok/asbplayer-linux/internal/capture"
	"github.com/b-tok/asbplayer-linux/internal/logging"
	"github.com/b-tok/asbplayer-linux/internal/nativemsg"
)

var log = logging.L("host")

// Capturer performs record requests.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) capture.Result
}

// Server answers requests one at a time.
type Server struct {
	conn     *nativemsg.Conn
	detector capture.Detector
	capturer Capturer
	target   string
}

// New creates a Server reading from r and writing to w.
func New(r io.Reader, w io.Writer, detector capture.Detector, capturer Capturer, target string) *Server {
	return &Server{
		conn:     nativemsg.NewConn(r, w),
		detector: detector,
		capturer: capturer,
		target:   target,
	}
}

type inbound struct {
	req *nativemsg.Request
	err error
}

// Serve processes requests until input ends (nil), a framing error occurs
// (error wrapping nativemsg.ErrProtocol) or ctx is cancelled between
// requests.
func (s *Server) Serve(ctx context.Context) error {
	msgs := make(chan inbound)
	go func() {
		for {
			req, err := s.conn.Recv()
			select {
			case msgs <- inbound{req: req, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	log.Info("host loop started")
	for {
		var in inbound
		select {
		case <-ctx.Done():
			log.Info("host loop stopping", "reason", ctx.Err())
			return ctx.Err()
		case in = <-msgs:
		}

		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				log.Info("input closed, exiting")
				return nil
			}
			log.Error("unreadable message, exiting", logging.KeyError, in.err)
			return in.err
		}

		resp := s.Handle(ctx, in.req)
		if err := s.conn.Send(resp); err != nil {
			return fmt.Errorf("host: send response: %w", err)
		}
	}
}

// Handle dispatches one request and always returns a response.
func (s *Server) Handle(ctx context.Context, req *nativemsg.Request) (resp *nativemsg.Response) {
	logger := logging.WithRequest(log, uuid.NewString(), req.Command)
	ctx = logging.NewContext(ctx, logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in handler", logging.KeyError, r)
			resp = nativemsg.Failure(fmt.Sprintf("internal error: %v", r))
		}
		logger.Info("request handled",
			"success", resp.Success,
			logging.KeyDurationMs, time.Since(start).Milliseconds())
	}()

	if req.Command == "" {
		logger.Warn("request without command")
		return nativemsg.Failure(`Unknown command: request has no "command" field`)
	}
	handler, ok := handlerRegistry[req.Command]
	if !ok {
		logger.Warn("unknown command")
		return nativemsg.Failure("Unknown command: " + req.Command)
	}
	return handler(ctx, s, req)
}
