package host

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/capture"
	"github.com/b-tok/asbplayer-linux/internal/executor"
	"github.com/b-tok/asbplayer-linux/internal/nativemsg"
	"github.com/b-tok/asbplayer-linux/internal/soundserver"
)

func frame(body string) []byte {
	buf := make([]byte, 4, 4+len(body))
	binary.NativeEndian.PutUint32(buf, uint32(len(body)))
	return append(buf, body...)
}

func readResponses(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	conn := nativemsg.NewConn(out, io.Discard)
	var resps []map[string]any
	for {
		body, err := conn.ReadFrame()
		if errors.Is(err, io.EOF) {
			return resps
		}
		if err != nil {
			t.Fatalf("read response: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		resps = append(resps, m)
	}
}

type fakeCapturer struct {
	result capture.Result
	reqs   []capture.Request
}

func (f *fakeCapturer) Capture(_ context.Context, req capture.Request) capture.Result {
	f.reqs = append(f.reqs, req)
	return f.result
}

// failingRunner makes every external command fail to launch.
type failingRunner struct{}

func (failingRunner) Run(context.Context, executor.Command) (*executor.Result, error) {
	return nil, errors.New("executable file not found in $PATH")
}

func TestServeDispatch(t *testing.T) {
	var in, out bytes.Buffer
	in.Write(frame(`{"command":"ping"}`))
	in.Write(frame(`{"command":"record","duration":1500,"encodeMp3":true}`))
	in.Write(frame(`{"command":"stop"}`))

	capt := &fakeCapturer{result: capture.Result{AudioBase64: "UklGRg==", Format: "wav"}}
	detector := &soundserver.Detector{Runner: failingRunner{}}
	s := New(&in, &out, detector, capt, "firefox")

	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	resps := readResponses(t, &out)
	if len(resps) != 3 {
		t.Fatalf("got %d responses, want 3", len(resps))
	}

	ping := resps[0]
	if ping["success"] != true || ping["message"] != "pong" || ping["audioSystem"] != "pipewire" {
		t.Fatalf("ping response = %v", ping)
	}

	rec := resps[1]
	if rec["success"] != true || rec["audioBase64"] != "UklGRg==" || rec["format"] != "wav" {
		t.Fatalf("record response = %v", rec)
	}
	if _, ok := rec["error"]; ok {
		t.Fatalf("success response carries error: %v", rec)
	}
	if len(capt.reqs) != 1 || capt.reqs[0].Duration != 1500*time.Millisecond || !capt.reqs[0].WantCompressed || capt.reqs[0].Target != "firefox" {
		t.Fatalf("capture request = %+v", capt.reqs)
	}

	unknown := resps[2]
	if unknown["success"] != false || unknown["error"] != "Unknown command: stop" {
		t.Fatalf("unknown response = %v", unknown)
	}
}

func TestRecordDefaultsAndFailure(t *testing.T) {
	var in, out bytes.Buffer
	in.Write(frame(`{"command":"record"}`))

	capt := &fakeCapturer{result: capture.Result{Reason: "Could not find Firefox audio stream. Make sure Firefox is playing audio."}}
	s := New(&in, &out, &soundserver.Detector{}, capt, "firefox")
	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	if capt.reqs[0].Duration != 5*time.Second {
		t.Fatalf("default duration = %v, want 5s", capt.reqs[0].Duration)
	}
	resps := readResponses(t, &out)
	if len(resps) != 1 || resps[0]["success"] != false || resps[0]["error"] != capt.result.Reason {
		t.Fatalf("responses = %v", resps)
	}
	for _, k := range []string{"audioBase64", "format", "message"} {
		if _, ok := resps[0][k]; ok {
			t.Fatalf("failure response has %q: %v", k, resps[0])
		}
	}
}

func TestServeProtocolErrorSendsNothing(t *testing.T) {
	var in, out bytes.Buffer
	in.Write(frame(`{"command":"ping"}`)[:9])

	s := New(&in, &out, &soundserver.Detector{}, &fakeCapturer{}, "firefox")
	err := s.Serve(context.Background())
	if !errors.Is(err, nativemsg.ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
	if out.Len() != 0 {
		t.Fatalf("wrote %d bytes after protocol error", out.Len())
	}
}

func TestServeEmptyInput(t *testing.T) {
	var out bytes.Buffer
	s := New(bytes.NewReader(nil), &out, &soundserver.Detector{}, &fakeCapturer{}, "firefox")
	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if out.Len() != 0 {
		t.Fatal("no response expected")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := New(pr, io.Discard, &soundserver.Detector{}, &fakeCapturer{}, "firefox")

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeAnswersMistypedRequests(t *testing.T) {
	tests := []struct {
		body      string
		wantError string
	}{
		{`{"command":"record","duration":"3000"}`, `invalid "duration" field: expected a number of milliseconds, got "3000"`},
		{`{"command":"record","encodeMp3":"yes"}`, `invalid "encodeMp3" field: expected a boolean, got "yes"`},
		{`{"command":5}`, "Unknown command: 5"},
		{`{"duration":1000}`, `Unknown command: request has no "command" field`},
		{`{"command":null}`, `Unknown command: request has no "command" field`},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var in, out bytes.Buffer
			in.Write(frame(tt.body))
			in.Write(frame(`{"command":"ping"}`))

			capt := &fakeCapturer{result: capture.Result{AudioBase64: "UklGRg==", Format: "wav"}}
			s := New(&in, &out, &soundserver.Detector{Runner: failingRunner{}}, capt, "firefox")
			if err := s.Serve(context.Background()); err != nil {
				t.Fatalf("Serve: %v", err)
			}

			resps := readResponses(t, &out)
			if len(resps) != 2 {
				t.Fatalf("got %d responses, want 2: %v", len(resps), resps)
			}
			if resps[0]["success"] != false || resps[0]["error"] != tt.wantError {
				t.Fatalf("first response = %v, want error %q", resps[0], tt.wantError)
			}
			if resps[1]["success"] != true || resps[1]["message"] != "pong" {
				t.Fatalf("ping after bad request = %v", resps[1])
			}
			if len(capt.reqs) != 0 {
				t.Fatalf("mistyped request reached the capturer: %+v", capt.reqs)
			}
		})
	}
}

func TestServeStopsOnNonObjectFrame(t *testing.T) {
	var in, out bytes.Buffer
	in.Write(frame(`["record"]`))
	in.Write(frame(`{"command":"ping"}`))

	s := New(&in, &out, &soundserver.Detector{}, &fakeCapturer{}, "firefox")
	if err := s.Serve(context.Background()); !errors.Is(err, nativemsg.ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
	if out.Len() != 0 {
		t.Fatalf("wrote %d bytes after a non-object frame", out.Len())
	}
}

type panickyCapturer struct{}

func (panickyCapturer) Capture(context.Context, capture.Request) capture.Result { panic("boom") }

func TestHandleRecoversPanic(t *testing.T) {
	s := New(bytes.NewReader(nil), io.Discard, &soundserver.Detector{}, panickyCapturer{}, "firefox")
	resp := s.Handle(context.Background(), &nativemsg.Request{Command: nativemsg.CommandRecord})
	if resp.Success || resp.Error == "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestMsToDuration(t *testing.T) {
	tests := []struct {
		ms   float64
		want time.Duration
	}{
		{5000, 5 * time.Second},
		{1.5, 1500 * time.Microsecond},
		{0, 0},
		{-10, 0},
	}
	for _, tt := range tests {
		if got := msToDuration(tt.ms); got != tt.want {
			t.Errorf("msToDuration(%v) = %v, want %v", tt.ms, got, tt.want)
		}
	}
}
