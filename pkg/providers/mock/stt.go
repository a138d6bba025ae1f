package mock

import (
	"context"
	"io"
	"sync"
)

type STTConfig struct {
	// Transcripts are returned in order; once exhausted Transcribe returns io.EOF.
	Transcripts []string
	Err         error
}

type Transcriber struct {
	cfg  STTConfig
	mu   sync.Mutex
	next int
	// Bytes counts audio consumed across calls.
	Bytes int64
}

func NewSTT(cfg STTConfig) *Transcriber {
	return &Transcriber{cfg: cfg}
}

func (s *Transcriber) Name() string { return "mock_stt" }

func (s *Transcriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	if audio != nil {
		n, _ := io.Copy(io.Discard, audio)
		s.mu.Lock()
		s.Bytes += n
		s.mu.Unlock()
	}
	if s.cfg.Err != nil {
		return "", s.cfg.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.cfg.Transcripts) {
		return "", io.EOF
	}
	text := s.cfg.Transcripts[s.next]
	s.next++
	return text, nil
}
