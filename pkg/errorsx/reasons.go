package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonToolUnknown   ReasonCode = "tool_unknown"
	ReasonToolDuplicate ReasonCode = "tool_duplicate"
	ReasonToolUnbound   ReasonCode = "tool_unbound"
	ReasonToolPanic     ReasonCode = "tool_panic"

	ReasonArgMissing ReasonCode = "arg_missing"
	ReasonArgInvalid ReasonCode = "arg_invalid"
	ReasonArgParse   ReasonCode = "arg_parse"

	ReasonToolNetwork    ReasonCode = "tool_network"
	ReasonToolHTTPStatus ReasonCode = "tool_http_status"
	ReasonToolProvider   ReasonCode = "tool_provider"
	ReasonToolTimeout    ReasonCode = "tool_timeout"
	ReasonDownload       ReasonCode = "download"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonInputClosed ReasonCode = "input_closed"
	ReasonSTTConnect  ReasonCode = "stt_connect"
	ReasonSTTSend     ReasonCode = "stt_send"
	ReasonTTSConnect  ReasonCode = "tts_connect"
	ReasonTTSSend     ReasonCode = "tts_send"
	ReasonSMSSend     ReasonCode = "sms_send"
)
