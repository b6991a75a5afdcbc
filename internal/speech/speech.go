// Package speech speaks text aloud on the host's audio device.
//
// A Provider hands out Engines. An Engine is acquired for one utterance and
// always closed afterwards, whether playback succeeded or not. The Worker
// owns the audio device: it plays one utterance at a time on its own
// goroutine while callers block until their text has been spoken.
package speech

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Engine speaks a single utterance and then releases its resources.
type Engine interface {
	// Say blocks until text has been played.
	Say(ctx context.Context, text string) error

	// Close releases the engine. It is called exactly once.
	Close() error
}

// Provider creates engines for a particular synthesis backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// NewEngine acquires an engine for one utterance.
	NewEngine(ctx context.Context) (Engine, error)
}

// playerCandidates lists Linux audio players in order of preference.
var playerCandidates = [][]string{
	{"mpg123", "-q"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
	{"play", "-q"},
	{"paplay"},
	{"aplay", "-q"},
}

// FindPlayer returns the command line used to play an audio file.
// A non-empty override is split on whitespace and used as-is; otherwise
// the first installed player for the current platform is chosen.
func FindPlayer(override string) ([]string, error) {
	if fields := strings.Fields(override); len(fields) > 0 {
		if _, err := exec.LookPath(fields[0]); err != nil {
			return nil, fmt.Errorf("audio player %q not found: %w", fields[0], err)
		}
		return fields, nil
	}

	switch runtime.GOOS {
	case "darwin":
		return []string{"afplay"}, nil
	case "linux":
		for _, c := range playerCandidates {
			if _, err := exec.LookPath(c[0]); err == nil {
				return append([]string(nil), c...), nil
			}
		}
		return nil, fmt.Errorf("no audio player found. Install mpg123, ffplay, sox, paplay, or aplay")
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}
