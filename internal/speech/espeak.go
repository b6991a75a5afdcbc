package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ESpeakConfig holds espeak-ng voice settings.
type ESpeakConfig struct {
	Command   string // Executable, default "espeak-ng"
	Voice     string // Voice name, e.g. "en", "en-us", "en+f3"
	Rate      int    // Words per minute, 80-450
	Pitch     int    // 0-99
	Amplitude int    // 0-200
}

// DefaultESpeakConfig returns settings close to a typical desktop voice.
func DefaultESpeakConfig() ESpeakConfig {
	return ESpeakConfig{
		Command:   "espeak-ng",
		Voice:     "en",
		Rate:      175,
		Pitch:     50,
		Amplitude: 100,
	}
}

// ESpeakProvider plays speech directly through espeak-ng.
type ESpeakProvider struct {
	cfg ESpeakConfig
}

// NewESpeakProvider normalizes cfg. It does not require espeak-ng to be
// installed yet; that is checked whenever an engine is acquired.
func NewESpeakProvider(cfg ESpeakConfig) *ESpeakProvider {
	def := DefaultESpeakConfig()
	if cfg.Command == "" {
		cfg.Command = def.Command
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	cfg.Rate = clamp(cfg.Rate, 80, 450)
	cfg.Pitch = clamp(cfg.Pitch, 0, 99)
	cfg.Amplitude = clamp(cfg.Amplitude, 0, 200)
	return &ESpeakProvider{cfg: cfg}
}

// Name returns the provider name.
func (p *ESpeakProvider) Name() string {
	return "espeak-ng"
}

// NewEngine implements Provider.
func (p *ESpeakProvider) NewEngine(ctx context.Context) (Engine, error) {
	path, err := exec.LookPath(p.cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("espeak-ng is not installed: %w", err)
	}
	return &espeakEngine{path: path, provider: p}, nil
}

// Args returns the espeak-ng arguments used to speak text.
func (p *ESpeakProvider) Args(text string) []string {
	return []string{
		"-v", p.cfg.Voice,
		"-s", strconv.Itoa(p.cfg.Rate),
		"-p", strconv.Itoa(p.cfg.Pitch),
		"-a", strconv.Itoa(p.cfg.Amplitude),
		"--", text,
	}
}

type espeakEngine struct {
	path     string
	provider *ESpeakProvider
}

func (e *espeakEngine) Say(ctx context.Context, text string) error {
	out, err := exec.CommandContext(ctx, e.path, e.provider.Args(text)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("espeak-ng failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e *espeakEngine) Close() error {
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
