package channels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/harunnryd/sapa/pkg/adapters/stt"
	"github.com/harunnryd/sapa/pkg/adapters/tts"
	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/redact"
)

// AudioSource hands out one captured utterance per Open. The device is held
// only until the returned reader is closed.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// AudioSink plays a synthesized clip.
type AudioSink interface {
	Play(ctx context.Context, audio []byte) error
}

// Status receives progress lines ("Listening...", "You: ...").
type Status interface {
	Printf(format string, args ...any)
}

// SpeechInput captures audio and transcribes it.
type SpeechInput struct {
	source AudioSource
	stt    stt.Transcriber
	status Status
	log    *slog.Logger
}

func NewSpeechInput(source AudioSource, transcriber stt.Transcriber, status Status, log *slog.Logger) *SpeechInput {
	if log == nil {
		log = slog.Default()
	}
	return &SpeechInput{source: source, stt: transcriber, status: status, log: log}
}

// Read returns "" when speech was captured but not understood; the caller
// treats that as a request to repeat.
func (s *SpeechInput) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.printf("Listening...")
	audio, err := s.source.Open(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", errorsx.Wrap(fmt.Errorf("open audio source: %w", err), errorsx.ReasonInputClosed)
	}
	defer audio.Close()
	s.printf("Recognizing...")
	text, err := s.stt.Transcribe(ctx, audio)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		s.log.Warn("transcription_failed", "provider", s.stt.Name(), "reason", errorsx.Reason(err), "error", err)
		s.printf("Sorry, I could not understand your audio.")
		return "", nil
	}
	text = strings.TrimSpace(text)
	if text != "" {
		s.printf("You: %s", text)
		s.log.Debug("transcribed", "provider", s.stt.Name(), "text", redact.Text(text))
	}
	return text, nil
}

func (s *SpeechInput) printf(format string, args ...any) {
	if s.status != nil {
		s.status.Printf(format, args...)
	}
}

// SpeechOutput echoes the text, then speaks it.
type SpeechOutput struct {
	tts  tts.Synthesizer
	sink AudioSink
	echo Output
	log  *slog.Logger
	mu   sync.Mutex
}

func NewSpeechOutput(synth tts.Synthesizer, sink AudioSink, echo Output, log *slog.Logger) *SpeechOutput {
	if log == nil {
		log = slog.Default()
	}
	return &SpeechOutput{tts: synth, sink: sink, echo: echo, log: log}
}

func (s *SpeechOutput) Write(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.echo != nil {
		if err := s.echo.Write(ctx, text); err != nil {
			return err
		}
	}
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		s.log.Warn("synthesis_failed", "provider", s.tts.Name(), "error", err)
		return errorsx.Wrap(fmt.Errorf("synthesize: %w", err), errorsx.ReasonTTSSend)
	}
	if len(audio) == 0 || s.sink == nil {
		return nil
	}
	return s.sink.Play(ctx, audio)
}

// FileSource replays recorded utterances from disk, one file per Open.
// It reports io.EOF when the list is exhausted.
type FileSource struct {
	mu    sync.Mutex
	paths []string
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

func (f *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) == 0 {
		return nil, io.EOF
	}
	path := f.paths[0]
	f.paths = f.paths[1:]
	return os.Open(path)
}

// CommandSource runs an external recorder (for example
// "arecord -q -f S16_LE -r 16000 -c 1 -d 5 -t raw") and streams its stdout.
type CommandSource struct {
	Name string
	Args []string
}

func (c CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Name, err)
	}
	return &commandReader{ReadCloser: out, cmd: cmd}, nil
}

type commandReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *commandReader) Close() error {
	_ = r.ReadCloser.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	return nil
}

// CommandSink pipes audio into an external player such as
// "ffplay -nodisp -autoexit -loglevel quiet -".
type CommandSink struct {
	Name string
	Args []string
}

func (c CommandSink) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = bytes.NewReader(audio)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("play via %s: %w: %s", c.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DiscardSink drops audio; used when only the echo is wanted.
type DiscardSink struct{}

func (DiscardSink) Play(context.Context, []byte) error { return nil }
