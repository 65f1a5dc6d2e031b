package svcquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/executor"
)

// ServiceStatus constants.
const (
	StatusRunning  = "running"
	StatusStarting = "starting"
	StatusStopped  = "stopped"
	StatusFailed   = "failed"
	StatusUnknown  = "unknown"
)

// ServiceInfo describes a systemd unit as seen by `systemctl is-active`.
type ServiceInfo struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	ActiveState string `json:"activeState,omitempty"`
	UserScope   bool   `json:"userScope"`
}

// IsActive returns true if the service is currently running.
func (s ServiceInfo) IsActive() bool {
	return s.Status == StatusRunning
}

// Querier asks systemd about unit state.
type Querier struct {
	Runner    executor.Runner
	Systemctl string // defaults to "systemctl"
	// User queries the per-user service manager (systemctl --user), where
	// desktop sound servers run.
	User    bool
	Timeout time.Duration
}

// GetStatus runs `systemctl [--user] is-active <name>`. systemctl exits 0
// only for an active unit; any other exit code is a valid, non-running
// answer and not an error.
func (q Querier) GetStatus(ctx context.Context, name string) (ServiceInfo, error) {
	info := ServiceInfo{Name: name, Status: StatusUnknown, UserScope: q.User}

	systemctl := q.Systemctl
	if systemctl == "" {
		systemctl = "systemctl"
	}
	args := []string{"is-active", name}
	if q.User {
		args = append([]string{"--user"}, args...)
	}

	result, err := q.Runner.Run(ctx, executor.Command{
		Name:    systemctl,
		Args:    args,
		Timeout: q.Timeout,
	})
	if err != nil {
		return info, fmt.Errorf("svcquery: systemctl is-active %s: %w", name, err)
	}

	info.ActiveState = strings.TrimSpace(string(result.Stdout))
	if result.Success() {
		info.Status = StatusRunning
		return info, nil
	}
	info.Status = statusFromActiveState(info.ActiveState)
	if info.Status == StatusRunning {
		// Non-zero exit wins over whatever was printed.
		info.Status = StatusUnknown
	}
	return info, nil
}

// IsRunning reports whether the unit is active.
func (q Querier) IsRunning(ctx context.Context, name string) (bool, error) {
	info, err := q.GetStatus(ctx, name)
	if err != nil {
		return false, err
	}
	return info.IsActive(), nil
}

func statusFromActiveState(state string) string {
	switch strings.ToLower(state) {
	case "active", "reloading", "refreshing":
		return StatusRunning
	case "activating":
		return StatusStarting
	case "inactive", "deactivating", "maintenance":
		return StatusStopped
	case "failed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
