package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures cloud synthesis.
type OpenAIConfig struct {
	APIKey string
	Model  string // "tts-1", "tts-1-hd", or "gpt-4o-mini-tts"
	Voice  string // "alloy", "echo", "fable", "onyx", "nova", "shimmer", ...

	// BaseURL overrides the API endpoint. Empty selects the public API.
	BaseURL string

	// Player overrides audio player detection, e.g. "mpg123 -q".
	Player string
}

// OpenAIProvider synthesizes MP3 audio with the OpenAI speech API and plays
// it with a local audio player.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIProvider creates the provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// NewEngine implements Provider. The engine owns a temporary audio file
// that Close removes.
func (p *OpenAIProvider) NewEngine(ctx context.Context) (Engine, error) {
	player, err := FindPlayer(p.cfg.Player)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "toolbox-tts-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	f.Close()

	return &openaiEngine{provider: p, player: player, file: f.Name()}, nil
}

type openaiEngine struct {
	provider *OpenAIProvider
	player   []string
	file     string
}

func (e *openaiEngine) Say(ctx context.Context, text string) error {
	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.provider.cfg.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(e.provider.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}

	response, err := e.provider.client.CreateSpeech(ctx, req)
	if err != nil {
		return fmt.Errorf("OpenAI TTS API error: %w", err)
	}
	defer response.Close()

	out, err := os.OpenFile(e.file, os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	written, err := io.Copy(out, response)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if written == 0 {
		return errors.New("no audio data received from OpenAI")
	}

	args := append(append([]string(nil), e.player[1:]...), e.file)
	output, err := exec.CommandContext(ctx, e.player[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("audio playback failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (e *openaiEngine) Close() error {
	if err := os.Remove(e.file); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
