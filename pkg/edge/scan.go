package edge

import (
	"strconv"

	"github.com/obsidianstack/promedge/pkg/promapi"
)

// Direction is the sense of the transition a query looks for.
type Direction int

const (
	Falling Direction = iota
	Rising
)

// DirectionOf returns Rising when from < to and Falling otherwise.
func DirectionOf(from, to uint64) Direction {
	if from < to {
		return Rising
	}
	return Falling
}

func (d Direction) String() string {
	if d == Rising {
		return "rising"
	}
	return "falling"
}

// ScanSeries runs Scan over the first series of a matrix result. Any further
// series are ignored, and an empty list is "no edge" rather than an error.
func ScanSeries(series []promapi.Series, from, to uint64) (uint64, bool, error) {
	if len(series) == 0 {
		return 0, false, nil
	}
	return Scan(series[0].Values, from, to)
}

// Scan looks for the last edge in values, which must be in ascending time
// order. It returns the timestamp of the last from-side sample followed by a
// later to-side sample, and false when there is none.
//
// A value that is not a non-negative integer aborts the scan with a
// *NonNumericError; no partial result is returned.
func Scan(values []promapi.Sample, from, to uint64) (uint64, bool, error) {
	rising := DirectionOf(from, to) == Rising

	var lastFrom, lastTo uint64
	for _, s := range values {
		v, err := strconv.ParseUint(s.Value, 10, 64)
		if err != nil {
			return 0, false, &NonNumericError{Value: s.Value}
		}

		// Both sides are measured against from; to only picks the direction.
		var isFrom, isTo bool
		if rising {
			isFrom = v <= from
			isTo = v >= from
		} else {
			isFrom = v >= from
			isTo = v <= from
		}

		if isFrom {
			lastFrom = s.Time
		} else if isTo {
			lastTo = s.Time
		}
	}

	if lastFrom > 0 && lastTo > lastFrom {
		return lastFrom, true, nil
	}
	return 0, false, nil
}
