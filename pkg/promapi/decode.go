package promapi

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/common/model"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the outer shape shared by both response variants. Data stays raw
// until the status has been checked, since its shape depends on it.
type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	ErrorType string          `json:"errorType"`
	Error     string          `json:"error"`
	Warnings  []string        `json:"warnings"`
}

type matrixData struct {
	ResultType model.ValueType `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

// Decode reads one query_range response body from r.
//
// It returns a *Success or *Failure, or an error wrapping ErrMalformedResponse
// when the body does not have the expected shape.
func Decode(r io.Reader) (Result, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	switch env.Status {
	case statusError:
		return &Failure{ErrorType: env.ErrorType, Message: env.Error}, nil
	case statusSuccess:
		return decodeSuccess(env)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, env.Status)
	}
}

func decodeSuccess(env envelope) (Result, error) {
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: success response without data", ErrMalformedResponse)
	}

	var data matrixData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrMalformedResponse, err)
	}
	if data.ResultType != model.ValMatrix {
		return &Failure{
			ErrorType: ErrorTypeUnexpectedResult,
			Message:   fmt.Sprintf("expected result type %s, got %s", model.ValMatrix, data.ResultType),
		}, nil
	}

	var series []Series
	if len(data.Result) > 0 {
		if err := json.Unmarshal(data.Result, &series); err != nil {
			return nil, fmt.Errorf("%w: data.result: %w", ErrMalformedResponse, err)
		}
	}
	return &Success{Series: series, Warnings: env.Warnings}, nil
}
