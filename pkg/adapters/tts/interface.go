package tts

import "context"

// Synthesizer renders text into a playable audio clip.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize returns the complete audio for text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config contains vendor-agnostic TTS configuration.
type Config struct {
	SampleRate int
	Channels   int
	Format     string
}
