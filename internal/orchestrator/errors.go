package orchestrator

import "fmt"

// ErrorKind is the tagged-sum replacement for string error codes: every
// failure the orchestrator can surface to a caller has exactly one Kind.
type ErrorKind int

const (
	KindAudioNotFound ErrorKind = iota
	KindVideoNotFound
	KindNotEnoughVideos
	KindInvalidPayload
	KindTargetTooSmall
	KindVideoBroken
	KindRenderFail
	KindDurationCapViolation
	KindBeatPipelineFail
	KindLocked
)

func (k ErrorKind) String() string {
	switch k {
	case KindAudioNotFound:
		return "AUDIO_NOT_FOUND"
	case KindVideoNotFound:
		return "VIDEO_NOT_FOUND"
	case KindNotEnoughVideos:
		return "NOT_ENOUGH_VIDEOS"
	case KindInvalidPayload:
		return "INVALID_PAYLOAD"
	case KindTargetTooSmall:
		return "TARGET_TOO_SMALL"
	case KindVideoBroken:
		return "VIDEO_BROKEN"
	case KindRenderFail:
		return "RENDER_FAIL"
	case KindDurationCapViolation:
		return "DURATION_CAP_VIOLATION"
	case KindBeatPipelineFail:
		return "BEAT_PIPELINE_FAIL"
	case KindLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// Error is the orchestrator's single error type. Every stage failure is
// wrapped into one of these before short-circuiting the job; Process
// hands it to toResponse, the JSON-building boundary and the only place
// that unwraps it via errors.As.
type Error struct {
	Kind         ErrorKind
	Message      string
	MissingCount int
	Sample       string
	ToolTail     string
	Err          error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError builds an Error around an underlying stage failure, carrying
// a media-tool tail when the underlying error is a *mediatool.ToolError
// and preserving the original error in the chain for any other
// errors.As inspection downstream.
func wrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), ToolTail: toolTail(err), Err: err}
}
