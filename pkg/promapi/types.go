package promapi

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/prometheus/common/model"
)

// RangeQuery holds the four parameters of a query_range request.
// Start, End and Step are unix seconds.
type RangeQuery struct {
	Query string
	Start uint64
	End   uint64
	Step  uint64
}

// Values renders q as URL query parameters. Numbers are decimal text and the
// expression is passed through unmodified.
func (q RangeQuery) Values() url.Values {
	v := url.Values{}
	v.Set("query", q.Query)
	v.Set("start", strconv.FormatUint(q.Start, 10))
	v.Set("end", strconv.FormatUint(q.End, 10))
	v.Set("step", strconv.FormatUint(q.Step, 10))
	return v
}

// Sample is one [timestamp, "value"] pair of a range vector.
type Sample struct {
	// Time is the sample timestamp in whole unix seconds. Sub-second
	// precision sent by the backend is truncated.
	Time uint64

	// Value is the sample value exactly as the backend encoded it.
	Value string
}

// UnmarshalJSON decodes the two-element array form used by the HTTP API.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("sample: want [time, value], got %d elements", len(pair))
	}

	var ts model.Time
	if err := ts.UnmarshalJSON(pair[0]); err != nil {
		return fmt.Errorf("sample time: %w", err)
	}
	if ts < 0 {
		return fmt.Errorf("sample time %s is before the unix epoch", ts)
	}
	var v string
	if err := json.Unmarshal(pair[1], &v); err != nil {
		return fmt.Errorf("sample value: %w", err)
	}

	s.Time = uint64(ts.Unix())
	s.Value = v
	return nil
}

// Series is one entry of a matrix result. Values are in the order the
// backend returned them (ascending time for Prometheus).
type Series struct {
	Metric model.Metric `json:"metric"`
	Values []Sample     `json:"values"`
}

// Result is the decoded query response: either *Success or *Failure.
type Result interface {
	isResult()
}

// Success is a "success" response carrying a matrix.
type Success struct {
	Series   []Series
	Warnings []string
}

// Failure is an "error" response, or a success whose payload is not a matrix.
type Failure struct {
	ErrorType string
	Message   string
}

func (*Success) isResult() {}
func (*Failure) isResult() {}
