package streams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/executor"
)

const nodeType = "PipeWire:Interface:Node"

// PipeWireFinder lists nodes with pw-dump.
type PipeWireFinder struct {
	Runner  executor.Runner
	PWDump  string
	Timeout time.Duration
}

// pwObject is the subset of a pw-dump record used for matching.
type pwObject struct {
	ID   json.Number `json:"id"`
	Type string      `json:"type"`
	Info *struct {
		ID    json.Number    `json:"id"`
		Props map[string]any `json:"props"`
	} `json:"info"`
}

func (f PipeWireFinder) Find(ctx context.Context, target string) (Handle, bool, error) {
	bin := f.PWDump
	if bin == "" {
		bin = "pw-dump"
	}
	result, err := f.Runner.Run(ctx, executor.Command{Name: bin, Timeout: f.Timeout})
	if err != nil {
		return "", false, fmt.Errorf("pw-dump: %w", err)
	}
	if !result.Success() {
		return "", false, fmt.Errorf("pw-dump exited %d: %s", result.ExitCode, bytes.TrimSpace(result.Stderr))
	}
	if result.Truncated {
		return "", false, fmt.Errorf("pw-dump output truncated")
	}
	return ParsePipeWireDump(result.Stdout, target)
}

// ParsePipeWireDump scans pw-dump JSON for a node whose application name or
// binary contains target, ignoring case. The object serial is preferred over
// the node id because parecord's --monitor-stream expects the serial.
func ParsePipeWireDump(data []byte, target string) (Handle, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objects []pwObject
	if err := dec.Decode(&objects); err != nil {
		return "", false, fmt.Errorf("decode pw-dump: %w", err)
	}

	needle := strings.ToLower(target)
	checked := 0
	for _, obj := range objects {
		if obj.Type != nodeType {
			continue
		}
		checked++

		var props map[string]any
		var infoID json.Number
		if obj.Info != nil {
			props = obj.Info.Props
			infoID = obj.Info.ID
		}
		name := propString(props, "application.name")
		binary := propString(props, "application.process.binary")
		if !strings.Contains(strings.ToLower(name), needle) && !strings.Contains(strings.ToLower(binary), needle) {
			continue
		}

		serial := propString(props, "object.serial")
		id := firstNonEmpty(infoID.String(), obj.ID.String(), serial)
		if id == "" {
			log.Debug("matching node has no id, skipping", "application", name)
			continue
		}
		if serial != "" {
			return Handle(serial), true, nil
		}
		log.Warn("matching node has no object.serial, using node id", "id", id)
		return Handle(id), true, nil
	}
	log.Debug("no matching pipewire node", "nodes", checked, "target", target)
	return "", false, nil
}

// propString renders a property as a string. pw-dump emits serials as
// numbers and names as strings; other types are ignored.
func propString(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
