package stt

import (
	"context"
	"io"
)

// Transcriber turns one captured utterance into text.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe consumes audio until the speaker stops and returns the final text.
	// An empty string means nothing intelligible was heard.
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// Config contains vendor-agnostic STT configuration.
type Config struct {
	SampleRate int
	Channels   int
	Encoding   string
	Language   string
}
