package edge

import (
	"errors"
	"fmt"

	"github.com/obsidianstack/promedge/pkg/promapi"
)

// ErrNonNumeric matches any *NonNumericError via errors.Is.
var ErrNonNumeric = errors.New("data point is not an integer")

// NonNumericError reports a sample value that does not parse as a
// non-negative integer. Value is the raw text from the response.
type NonNumericError struct {
	Value string
}

func (e *NonNumericError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNonNumeric, e.Value)
}

func (e *NonNumericError) Is(target error) bool { return target == ErrNonNumeric }

// Error kinds returned by Kind.
const (
	KindNetwork    = "network"
	KindMalformed  = "malformed"
	KindBackend    = "backend"
	KindNonNumeric = "non_numeric"
	KindOther      = "other"
)

// Kind classifies an error returned by Detector for logs and metric labels.
// A nil error has no kind.
func Kind(err error) string {
	var apiErr *promapi.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, promapi.ErrNetwork):
		return KindNetwork
	case errors.Is(err, promapi.ErrMalformedResponse):
		return KindMalformed
	case errors.As(err, &apiErr):
		return KindBackend
	case errors.Is(err, ErrNonNumeric):
		return KindNonNumeric
	default:
		return KindOther
	}
}
