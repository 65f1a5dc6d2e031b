package svcquery

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/b-tok/asbplayer-linux/internal/executor"
)

type stubRunner struct {
	result *executor.Result
	err    error
	got    executor.Command
}

func (s *stubRunner) Run(_ context.Context, cmd executor.Command) (*executor.Result, error) {
	s.got = cmd
	return s.result, s.err
}

func TestServiceInfoIsActive(t *testing.T) {
	active := ServiceInfo{Name: "test", Status: StatusRunning}
	if !active.IsActive() {
		t.Error("running service should be active")
	}
	stopped := ServiceInfo{Name: "test", Status: StatusStopped}
	if stopped.IsActive() {
		t.Error("stopped service should not be active")
	}
}

func TestGetStatusUserScopeArgs(t *testing.T) {
	r := &stubRunner{result: &executor.Result{ExitCode: 0, Stdout: []byte("active\n")}}
	q := Querier{Runner: r, User: true}

	info, err := q.GetStatus(context.Background(), "pipewire")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if r.got.Name != "systemctl" {
		t.Fatalf("expected systemctl, got %q", r.got.Name)
	}
	if want := []string{"--user", "is-active", "pipewire"}; !reflect.DeepEqual(r.got.Args, want) {
		t.Fatalf("args = %v, want %v", r.got.Args, want)
	}
	if !info.IsActive() || info.ActiveState != "active" || !info.UserScope {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestGetStatusMapsInactiveStates(t *testing.T) {
	cases := []struct {
		out  string
		code int
		want string
	}{
		{"inactive", 3, StatusStopped},
		{"failed", 3, StatusFailed},
		{"activating", 3, StatusStarting},
		{"", 4, StatusUnknown},
		{"active", 1, StatusUnknown},
	}
	for _, tc := range cases {
		r := &stubRunner{result: &executor.Result{ExitCode: tc.code, Stdout: []byte(tc.out)}}
		info, err := Querier{Runner: r, Systemctl: "/usr/bin/systemctl"}.GetStatus(context.Background(), "pipewire")
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.out, err)
		}
		if info.Status != tc.want {
			t.Errorf("%q exit %d: status = %s, want %s", tc.out, tc.code, info.Status, tc.want)
		}
		if info.IsActive() {
			t.Errorf("%q exit %d should not be active", tc.out, tc.code)
		}
		if r.got.Name != "/usr/bin/systemctl" {
			t.Errorf("expected configured systemctl path, got %q", r.got.Name)
		}
	}
}

func TestIsRunningPropagatesLaunchError(t *testing.T) {
	r := &stubRunner{err: errors.New("executable file not found")}
	running, err := Querier{Runner: r}.IsRunning(context.Background(), "pipewire")
	if err == nil {
		t.Fatal("expected error")
	}
	if running {
		t.Fatal("launch failure must not report running")
	}
}
