package channels

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/logging"
	"github.com/harunnryd/sapa/pkg/providers/mock"
)

func TestConsoleReadsLinesThenEOF(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("hello\r\nweather in pune"), &out, ConsoleConfig{Prompt: "You: "})
	first, err := c.Read(context.Background())
	if err != nil || first != "hello" {
		t.Fatalf("unexpected first read %q %v", first, err)
	}
	second, err := c.Read(context.Background())
	if err != nil || second != "weather in pune" {
		t.Fatalf("expected trailing line without newline, got %q %v", second, err)
	}
	if _, err := c.Read(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if strings.Count(out.String(), "You: ") != 3 {
		t.Fatalf("expected a prompt per read, got %q", out.String())
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestConsoleReadFaultCarriesReason(t *testing.T) {
	c := NewConsole(brokenReader{}, io.Discard, ConsoleConfig{})
	_, err := c.Read(context.Background())
	if !errorsx.HasReason(err, errorsx.ReasonInputClosed) {
		t.Fatalf("expected input_closed reason, got %v", err)
	}
}

func TestConsoleWritePrefixesSpeaker(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(nil, &out, ConsoleConfig{})
	_ = c.Write(context.Background(), "Good Morning!")
	if out.String() != "Assistant: Good Morning!\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

type memSource struct {
	clips  [][]byte
	opened int
	closed int
}

func (m *memSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if m.opened >= len(m.clips) {
		return nil, io.EOF
	}
	clip := m.clips[m.opened]
	m.opened++
	return &trackedCloser{Reader: bytes.NewReader(clip), onClose: func() { m.closed++ }}, nil
}

type trackedCloser struct {
	io.Reader
	onClose func()
}

func (t *trackedCloser) Close() error { t.onClose(); return nil }

func TestSpeechInputReleasesSourceEachRead(t *testing.T) {
	src := &memSource{clips: [][]byte{[]byte("pcm1"), []byte("pcm2")}}
	transcriber := mock.NewSTT(mock.STTConfig{Transcripts: []string{" What time is it ", ""}})
	var status bytes.Buffer
	in := NewSpeechInput(src, transcriber, NewConsole(nil, &status, ConsoleConfig{}), logging.Discard())

	text, err := in.Read(context.Background())
	if err != nil || text != "What time is it" {
		t.Fatalf("unexpected read %q %v", text, err)
	}
	if src.closed != 1 {
		t.Fatalf("expected source released after read, closed=%d", src.closed)
	}
	text, err = in.Read(context.Background())
	if err != nil || text != "" {
		t.Fatalf("expected empty utterance, got %q %v", text, err)
	}
	if _, err := in.Read(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF when source is exhausted, got %v", err)
	}
	if !strings.Contains(status.String(), "You: What time is it") {
		t.Fatalf("expected echo of transcript, got %q", status.String())
	}
}

func TestSpeechInputTranscriptionErrorIsEmpty(t *testing.T) {
	src := &memSource{clips: [][]byte{[]byte("pcm")}}
	transcriber := mock.NewSTT(mock.STTConfig{Err: errors.New("service unavailable")})
	in := NewSpeechInput(src, transcriber, nil, logging.Discard())
	text, err := in.Read(context.Background())
	if err != nil || text != "" {
		t.Fatalf("expected empty utterance on transcription error, got %q %v", text, err)
	}
}

type recordingSink struct {
	played [][]byte
}

func (r *recordingSink) Play(ctx context.Context, audio []byte) error {
	r.played = append(r.played, audio)
	return nil
}

func TestSpeechOutputEchoesAndPlays(t *testing.T) {
	var echo bytes.Buffer
	sink := &recordingSink{}
	synth := mock.NewTTS(mock.TTSConfig{Audio: []byte{1, 2, 3}})
	out := NewSpeechOutput(synth, sink, NewConsole(nil, &echo, ConsoleConfig{}), logging.Discard())
	if err := out.Write(context.Background(), "Opening Google."); err != nil {
		t.Fatalf("write: %v", err)
	}
	if echo.String() != "Assistant: Opening Google.\n" || len(sink.played) != 1 {
		t.Fatalf("unexpected echo %q / plays %d", echo.String(), len(sink.played))
	}
	if got := synth.Texts(); len(got) != 1 || got[0] != "Opening Google." {
		t.Fatalf("unexpected synthesized texts %v", got)
	}
}

type stubMessages struct {
	mu    sync.Mutex
	last  *api.CreateMessageParams
	sid   string
	fails int
	calls int
}

func (s *stubMessages) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = params
	if s.calls <= s.fails {
		return nil, errors.New("503")
	}
	return &api.ApiV2010Message{Sid: &s.sid}, nil
}

func TestSMSSendsBody(t *testing.T) {
	stub := &stubMessages{sid: "SM1", fails: 1}
	sms := NewSMS(SMSConfig{AccountSID: "AC1", AuthToken: "token", From: "+200", To: "+100", Retries: 1, Backoff: time.Millisecond}, logging.Discard())
	sms.client = stub
	if err := sms.Write(context.Background(), "Reminder: It's time to call John!"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", stub.calls)
	}
	if stub.last.Body == nil || *stub.last.Body != "Reminder: It's time to call John!" {
		t.Fatalf("expected body param")
	}
	if stub.last.To == nil || *stub.last.To != "+100" || stub.last.From == nil || *stub.last.From != "+200" {
		t.Fatalf("expected to/from params")
	}
}

func TestSMSRequiresCredentials(t *testing.T) {
	sms := NewSMS(SMSConfig{From: "+200", To: "+100"}, logging.Discard())
	if err := sms.Write(context.Background(), "x"); err == nil {
		t.Fatalf("expected credential error")
	}
}

func TestMultiWritesAllAndJoinsErrors(t *testing.T) {
	var a, b bytes.Buffer
	failing := OutputFunc(func(context.Context, string) error { return errors.New("offline") })
	m := NewMulti(NewConsole(nil, &a, ConsoleConfig{}), nil, failing, NewConsole(nil, &b, ConsoleConfig{}))
	err := m.Write(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "offline") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if a.String() == "" || b.String() == "" {
		t.Fatalf("expected both consoles written")
	}
}

func TestConsoleReadStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := NewConsole(pr, io.Discard, ConsoleConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Read(ctx)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read did not return after cancel")
	}
}
