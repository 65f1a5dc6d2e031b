// Package manifest generates and installs the native-messaging host manifest
// that lets a browser launch the host.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

var log = logging.L("manifest")

// HostName is the name the extension connects to.
const HostName = "asbplayer_audio_host"

const description = "asbplayer audio capture host"

// Browser selects the manifest dialect and install location.
type Browser string

const (
	Firefox  Browser = "firefox"
	Chromium Browser = "chromium"
	Chrome   Browser = "chrome"
)

// ParseBrowser converts a CLI value into a Browser.
func ParseBrowser(s string) (Browser, error) {
	switch b := Browser(strings.ToLower(s)); b {
	case Firefox, Chromium, Chrome:
		return b, nil
	}
	return "", fmt.Errorf("manifest: unknown browser %q (use firefox, chromium or chrome)", s)
}

// Manifest is the JSON document read by the browser.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
}

// Build returns the manifest for browser. binary must be absolute.
func Build(browser Browser, binary string, extensionIDs []string) (*Manifest, error) {
	if !filepath.IsAbs(binary) {
		return nil, fmt.Errorf("manifest: host path %q is not absolute", binary)
	}
	if len(extensionIDs) == 0 {
		return nil, errors.New("manifest: at least one extension id is required")
	}

	m := &Manifest{
		Name:        HostName,
		Description: description,
		Path:        binary,
		Type:        "stdio",
	}
	switch browser {
	case Firefox:
		m.AllowedExtensions = append([]string(nil), extensionIDs...)
	case Chromium, Chrome:
		for _, id := range extensionIDs {
			m.AllowedOrigins = append(m.AllowedOrigins, chromeOrigin(id))
		}
	default:
		return nil, fmt.Errorf("manifest: unknown browser %q", browser)
	}
	return m, nil
}

func chromeOrigin(id string) string {
	if strings.HasPrefix(id, "chrome-extension://") {
		return strings.TrimSuffix(id, "/") + "/"
	}
	return "chrome-extension://" + id + "/"
}

// Marshal renders m as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// Dir is the per-user manifest directory for browser under home.
func Dir(browser Browser, home string) (string, error) {
	switch browser {
	case Firefox:
		return filepath.Join(home, ".mozilla", "native-messaging-hosts"), nil
	case Chromium:
		return filepath.Join(configHome(home), "chromium", "NativeMessagingHosts"), nil
	case Chrome:
		return filepath.Join(configHome(home), "google-chrome", "NativeMessagingHosts"), nil
	}
	return "", fmt.Errorf("manifest: unknown browser %q", browser)
}

func configHome(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return xdg
	}
	return filepath.Join(home, ".config")
}

// Path is where the manifest for browser lives.
func Path(browser Browser, home string) (string, error) {
	dir, err := Dir(browser, home)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HostName+".json"), nil
}

// Install writes m to the browser's manifest directory and returns the path.
func Install(browser Browser, m *Manifest, home string) (string, error) {
	path, err := Path(browser, home)
	if err != nil {
		return "", err
	}
	data, err := m.Marshal()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("manifest: create dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("manifest: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("manifest: install: %w", err)
	}
	log.Info("installed native messaging manifest", "browser", browser, "path", path)
	return path, nil
}

// Uninstall removes the browser's manifest. A missing manifest is not an error.
func Uninstall(browser Browser, home string) (string, error) {
	path, err := Path(browser, home)
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("manifest: remove: %w", err)
	}
	return path, nil
}
