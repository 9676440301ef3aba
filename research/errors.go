package research

// ErrorKind classifies a terminal task failure for clients and diagnostics.
// Raw error text never crosses the wire; only Kind and a short message do.
type ErrorKind string

const (
	ErrKindExecution   ErrorKind = "execution_failed"
	ErrKindTimeout     ErrorKind = "timeout"
	ErrKindCanceled    ErrorKind = "canceled"
	ErrKindUnavailable ErrorKind = "backend_unavailable"
)

// TaskError is the structured failure description a worker delivers instead
// of a Result.
type TaskError struct {
	Kind    ErrorKind
	Message string
}

func (e *TaskError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return string(e.Kind) + ": " + e.Message
}

// NewTaskError builds a TaskError with a user-presentable message.
func NewTaskError(kind ErrorKind, message string) *TaskError {
	return &TaskError{Kind: kind, Message: message}
}

// userMessageLimit keeps client-facing failure text short; anything longer is
// replaced by a generic message while the full text stays in server logs.
const userMessageLimit = 100

// UserMessage returns the client-safe form of the failure message.
func (e *TaskError) UserMessage() string {
	if e == nil || e.Message == "" {
		return "Unable to process your request"
	}
	if len(e.Message) > userMessageLimit {
		return "Something went wrong while processing your request"
	}
	return e.Message
}
