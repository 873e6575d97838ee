package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineTuning groups the timing constants of the video pipeline. The
// recorder cannot observe the remote renderer's transitions, so these values
// are the only synchronization knobs between narration audio and slides.
type PipelineTuning struct {
	DeckPollInterval    time.Duration `yaml:"deck_poll_interval"`
	DeckMaxPollAttempts int           `yaml:"deck_max_poll_attempts"`
	NavigationTimeout   time.Duration `yaml:"navigation_timeout"`
	ChallengeTimeout    time.Duration `yaml:"challenge_timeout"`
	SettleDelay         time.Duration `yaml:"settle_delay"`
	InterSlidePause     time.Duration `yaml:"inter_slide_pause"`
	TransitionDelay     time.Duration `yaml:"transition_delay"`
	EndBuffer           time.Duration `yaml:"end_buffer"`
	SilenceDuration     time.Duration `yaml:"silence_duration"`
	CaptureFPS          int           `yaml:"capture_fps"`
}

// DefaultPipelineTuning returns the production defaults.
func DefaultPipelineTuning() PipelineTuning {
	return PipelineTuning{
		DeckPollInterval:    5 * time.Second,
		DeckMaxPollAttempts: 60,
		NavigationTimeout:   60 * time.Second,
		ChallengeTimeout:    60 * time.Second,
		SettleDelay:         5 * time.Second,
		InterSlidePause:     500 * time.Millisecond,
		TransitionDelay:     1500 * time.Millisecond,
		EndBuffer:           2 * time.Second,
		SilenceDuration:     2 * time.Second,
		CaptureFPS:          60,
	}
}

// LoadPipelineTuning starts from the defaults, overlays the optional YAML file
// at path and finally applies PIPELINE_* environment overrides.
func LoadPipelineTuning(path string) (PipelineTuning, error) {
	t := DefaultPipelineTuning()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, fmt.Errorf("read pipeline tuning: %w", err)
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("parse pipeline tuning %s: %w", path, err)
		}
	}

	t.DeckPollInterval = getEnvDuration("PIPELINE_DECK_POLL_INTERVAL", t.DeckPollInterval)
	t.DeckMaxPollAttempts = getEnvInt("PIPELINE_DECK_MAX_POLL_ATTEMPTS", t.DeckMaxPollAttempts)
	t.NavigationTimeout = getEnvDuration("PIPELINE_NAVIGATION_TIMEOUT", t.NavigationTimeout)
	t.ChallengeTimeout = getEnvDuration("PIPELINE_CHALLENGE_TIMEOUT", t.ChallengeTimeout)
	t.SettleDelay = getEnvDuration("PIPELINE_SETTLE_DELAY", t.SettleDelay)
	t.InterSlidePause = getEnvDuration("PIPELINE_INTER_SLIDE_PAUSE", t.InterSlidePause)
	t.TransitionDelay = getEnvDuration("PIPELINE_TRANSITION_DELAY", t.TransitionDelay)
	t.EndBuffer = getEnvDuration("PIPELINE_END_BUFFER", t.EndBuffer)
	t.SilenceDuration = getEnvDuration("PIPELINE_SILENCE_DURATION", t.SilenceDuration)
	t.CaptureFPS = getEnvInt("PIPELINE_CAPTURE_FPS", t.CaptureFPS)

	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate rejects values that would stall or break the pipeline.
func (t PipelineTuning) Validate() error {
	switch {
	case t.DeckPollInterval <= 0:
		return fmt.Errorf("pipeline tuning: deck_poll_interval must be positive")
	case t.DeckMaxPollAttempts <= 0:
		return fmt.Errorf("pipeline tuning: deck_max_poll_attempts must be positive")
	case t.CaptureFPS <= 0 || t.CaptureFPS > 120:
		return fmt.Errorf("pipeline tuning: capture_fps must be within 1..120")
	case t.SilenceDuration <= 0:
		return fmt.Errorf("pipeline tuning: silence_duration must be positive")
	case t.InterSlidePause < 0 || t.TransitionDelay < 0 || t.EndBuffer < 0 || t.SettleDelay < 0 || t.ChallengeTimeout < 0:
		return fmt.Errorf("pipeline tuning: delays must not be negative")
	}
	return nil
}
