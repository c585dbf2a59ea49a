package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir returns the runtime directory holding the method channel socket.
// Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/xwbridge-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/xwbridge-runtime-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the default method channel socket path.
func SocketPath() (string, error) {
	return SocketPathFor("")
}

// SocketPathFor returns the socket path for the bridge serving display.
// Bridges for different displays get distinct sockets; an empty display
// yields the default path.
func SocketPathFor(display string) (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	name := "xwbridge.sock"
	if d := sanitizeDisplay(display); d != "" {
		name = "xwbridge-" + d + ".sock"
	}
	return filepath.Join(runtimeDir, name), nil
}

// sanitizeDisplay turns ":1" or "host:0.0" into a file name fragment.
func sanitizeDisplay(display string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-':
			return r
		}
		return -1
	}, display)
}

// ControlSocketPath returns the control socket that sits next to the
// method channel socket at socketPath.
func ControlSocketPath(socketPath string) string {
	return strings.TrimSuffix(socketPath, filepath.Ext(socketPath)) + "-control.sock"
}
