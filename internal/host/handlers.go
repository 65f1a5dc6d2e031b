package host

import (
	"context"
	"math"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/capture"
	"github.com/b-tok/asbplayer-linux/internal/logging"
	"github.com/b-tok/asbplayer-linux/internal/nativemsg"
)

// Handler answers one request.
type Handler func(ctx context.Context, s *Server, req *nativemsg.Request) *nativemsg.Response

// handlerRegistry maps command names to their handlers. It is read-only
// after package init.
var handlerRegistry = map[string]Handler{
	nativemsg.CommandPing:   handlePing,
	nativemsg.CommandRecord: handleRecord,
}

func handlePing(ctx context.Context, s *Server, _ *nativemsg.Request) *nativemsg.Response {
	return &nativemsg.Response{
		Success:     true,
		Message:     "pong",
		AudioSystem: s.detector.Detect(ctx).String(),
	}
}

func handleRecord(ctx context.Context, s *Server, req *nativemsg.Request) *nativemsg.Response {
	if err := req.Err(); err != nil {
		logging.FromContext(ctx).Warn("rejecting record request", logging.KeyError, err)
		return nativemsg.Failure(err.Error())
	}
	res := s.capturer.Capture(context.WithoutCancel(ctx), capture.Request{
		Target:         s.target,
		Duration:       msToDuration(req.DurationMs()),
		WantCompressed: req.EncodeMp3,
	})
	if !res.OK() {
		return nativemsg.Failure(res.Reason)
	}
	return &nativemsg.Response{
		Success:     true,
		AudioBase64: res.AudioBase64,
		Format:      res.Format,
	}
}

func msToDuration(ms float64) time.Duration {
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	d := ms * float64(time.Millisecond)
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
