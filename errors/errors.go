package errors

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Error defines a standard application error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Wrapped underlying error.
	WrappedErr error `json:"wrapped_err,omitempty"`
}

// Error returns the string representation of the error message.
func (e *Error) Error() string {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(e)
	return buf.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.WrappedErr
}

// NewError returns standard go error with given string
func NewError(e string) error {
	return errors.New(e)
}

// Kind defines the kind or class of an error.
type Kind uint8

// Transport agnostic error "kinds"
const (
	Other              Kind = iota // Unclassified error
	Internal                       // Internal error
	Conflict                       // Conflict when an entity already exists
	Invalid                        // Invalid input, validation error etc
	NotFound                       // Entity does not exist
	Unauthorized                   // Unauthorized access
	Forbidden                      // Forbidden access
	CapacityExceeded               // No seats left at order time
	BatchFull                      // Seat lost between payment and confirmation
	SignatureMismatch              // Gateway callback signature does not verify
	PaymentNotCaptured             // Gateway reports payment not captured
	GatewayUnavailable             // Gateway unreachable, outcome unknown
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "unclassified error"
	case Internal:
		return "internal error"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid input"
	case NotFound:
		return "entity not found"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case CapacityExceeded:
		return "capacity exceeded"
	case BatchFull:
		return "batch full"
	case SignatureMismatch:
		return "signature mismatch"
	case PaymentNotCaptured:
		return "payment not captured"
	case GatewayUnavailable:
		return "gateway unavailable"
	default:
		return "unknown error kind"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case error:
			e.WrappedErr = arg
		case string:
			e.Message = arg
		}
	}
	return e
}

// KindOf returns the Kind of err if it is an application error,
// Other otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Other
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// NewInternalServerError creates a new internal server error
func NewInternalServerError(msg string) error {
	return E(Internal, msg)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string) error {
	return E(NotFound, msg)
}

// NewInvalidParamsError creates a new invalid parameters error
func NewInvalidParamsError(msg string) error {
	return E(Invalid, msg)
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return E(Conflict, msg)
}

// NewCapacityExceededError signals a full course or batch at order time.
func NewCapacityExceededError(msg string) error {
	return E(CapacityExceeded, msg)
}

// NewBatchFullError signals a paid enrollment that lost the seat race.
func NewBatchFullError(msg string) error {
	return E(BatchFull, msg)
}

// NewSignatureMismatchError signals a callback signature that did not verify.
func NewSignatureMismatchError(msg string) error {
	return E(SignatureMismatch, msg)
}

// NewPaymentNotCapturedError signals a payment the gateway has not captured.
func NewPaymentNotCapturedError(msg string) error {
	return E(PaymentNotCaptured, msg)
}

// NewGatewayUnavailableError signals an unreachable gateway; the outcome of
// the payment is unknown and the reconciler owns the retry.
func NewGatewayUnavailableError(msg string, err error) error {
	return E(GatewayUnavailable, msg, err)
}

var (
	As = errors.As
	Is = errors.Is
)
