package deepgram

import (
	"testing"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/logging"
)

func message(text string, final, speechFinal bool) *msginterfaces.MessageResponse {
	mr := &msginterfaces.MessageResponse{IsFinal: final, SpeechFinal: speechFinal}
	mr.Channel.Alternatives = []msginterfaces.Alternative{{Transcript: text}}
	return mr
}

func TestCollectorJoinsFinalSegments(t *testing.T) {
	c := newCollector(logging.Discard())
	c.Message(message("what's the", false, false))
	c.Message(message("what's the weather", true, false))
	select {
	case <-c.done:
		t.Fatalf("should not finish before speech_final")
	default:
	}
	c.Message(message("in Mumbai", true, true))
	select {
	case <-c.done:
	default:
		t.Fatalf("expected speech_final to finish the utterance")
	}
	if got := c.transcript(); got != "what's the weather in Mumbai" {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestCollectorUtteranceEndWithoutSpeechIgnored(t *testing.T) {
	c := newCollector(logging.Discard())
	c.UtteranceEnd(&msginterfaces.UtteranceEndResponse{})
	select {
	case <-c.done:
		t.Fatalf("empty utterance end should keep listening")
	default:
	}
	c.Message(message("hello", true, false))
	c.UtteranceEnd(&msginterfaces.UtteranceEndResponse{})
	c.Close(&msginterfaces.CloseResponse{})
	if c.transcript() != "hello" {
		t.Fatalf("unexpected transcript %q", c.transcript())
	}
}

func TestCollectorError(t *testing.T) {
	c := newCollector(logging.Discard())
	c.Error(&msginterfaces.ErrorResponse{ErrCode: "401", ErrMsg: "bad key"})
	if err := c.failure(); !errorsx.HasReason(err, errorsx.ReasonSTTSend) {
		t.Fatalf("expected stt error, got %v", err)
	}
}
