package main

import (
	"fmt"
	"log/slog"

	"github.com/ironsheep/toolbox-api/internal/classifier"
	"github.com/ironsheep/toolbox-api/internal/config"
	"github.com/ironsheep/toolbox-api/internal/geocode"
	"github.com/ironsheep/toolbox-api/internal/imaging"
	"github.com/ironsheep/toolbox-api/internal/mailer"
	"github.com/ironsheep/toolbox-api/internal/server"
	"github.com/ironsheep/toolbox-api/internal/speech"
)

// buildDeps constructs every collaborator the server needs. The returned
// cleanup stops the speech worker and must be called after the server has
// stopped.
func buildDeps(cfg *config.Config, logger *slog.Logger) (server.Deps, func(), error) {
	blurrer, err := imaging.NewBlurrer(cfg.Blur.Dir, imaging.BlurOptions{
		Sigma:       cfg.Blur.Sigma,
		Engine:      cfg.Blur.Engine,
		JPEGQuality: cfg.Blur.JPEGQuality,
	})
	if err != nil {
		return server.Deps{}, nil, fmt.Errorf("failed to configure blur: %w", err)
	}

	geocoder, err := geocode.NewClient(geocode.Config{
		BaseURL:         cfg.Geocoding.URL,
		UserAgent:       cfg.Geocoding.UserAgent,
		Timeout:         cfg.Geocoding.Timeout,
		BreakerFailures: cfg.Geocoding.BreakerFailures,
		BreakerTimeout:  cfg.Geocoding.BreakerTimeout,
		Logger:          logger,
	})
	if err != nil {
		return server.Deps{}, nil, fmt.Errorf("failed to configure geocoding: %w", err)
	}

	model, err := trainClassifier(cfg.Classifier, logger)
	if err != nil {
		return server.Deps{}, nil, err
	}

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	})
	if err != nil {
		return server.Deps{}, nil, fmt.Errorf("failed to configure smtp: %w", err)
	}
	if cfg.SMTP.From == "" {
		logger.Warn("no smtp sender configured, /send_emails will report every recipient as failed")
	}

	provider, err := newSpeechProvider(cfg.Speech)
	if err != nil {
		return server.Deps{}, nil, fmt.Errorf("failed to configure speech: %w", err)
	}
	worker := speech.NewWorker(provider, logger)
	logger.Info("speech provider ready", "provider", provider.Name())

	deps := server.Deps{
		Blurrer:   blurrer,
		Capture:   newCaptureStore(cfg.Capture),
		Geocoder:  geocoder,
		Predictor: model,
		Mailer:    mailer.NewDispatcher(sender, logger),
		Speaker:   worker,
		Logger:    logger,
	}
	return deps, worker.Close, nil
}

func trainClassifier(cfg config.ClassifierConfig, logger *slog.Logger) (*classifier.Model, error) {
	var (
		ds  *classifier.Dataset
		err error
	)
	if cfg.Dataset != "" {
		ds, err = classifier.LoadFile(cfg.Dataset)
	} else {
		ds, err = classifier.Iris()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier dataset: %w", err)
	}

	model, err := classifier.Train(ds, classifier.TrainOptions{
		Iterations:   cfg.Iterations,
		LearningRate: cfg.LearningRate,
		L2:           cfg.L2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to train classifier: %w", err)
	}

	logger.Info("classifier trained",
		"samples", len(ds.Samples),
		"classes", model.Classes(),
		"training_accuracy", model.Accuracy(ds),
	)
	return model, nil
}

func newCaptureStore(cfg config.CaptureConfig) *imaging.CaptureStore {
	if cfg.Mode == config.CapturePerRequest {
		return imaging.NewPerRequestCapture(cfg.Dir)
	}
	return imaging.NewFixedCapture(cfg.Path)
}

func newSpeechProvider(cfg config.SpeechConfig) (speech.Provider, error) {
	switch cfg.Provider {
	case "openai":
		p, err := speech.NewOpenAIProvider(speech.OpenAIConfig{
			APIKey: cfg.OpenAIKey,
			Model:  cfg.OpenAIModel,
			Voice:  cfg.OpenAIVoice,
			Player: cfg.Player,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "espeak", "":
		return speech.NewESpeakProvider(speech.ESpeakConfig{
			Voice:     cfg.Voice,
			Rate:      cfg.Rate,
			Pitch:     cfg.Pitch,
			Amplitude: cfg.Amplitude,
		}), nil
	default:
		return nil, fmt.Errorf("unknown speech provider: %s", cfg.Provider)
	}
}
