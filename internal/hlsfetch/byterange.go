package hlsfetch

import (
	"fmt"
	"strconv"
	"strings"
)

// CalculateByteRange converts an EXT-X-BYTERANGE attribute value of the form
// "L" or "L@O" into the absolute HTTP range "O'-E", where O' is O when
// present or fallbackOffset otherwise, and E = O'+L-1. Callers thread the
// returned end+1 back in as the next call's fallbackOffset to get the HLS
// spec's implicit-contiguity carry.
//
// Grounded on devine's HLS.calculate_byte_range, which performs the same
// two-token split with no special-casing at discontinuities; resetting the
// carried offset at a discontinuity boundary is the pipeline's job, not
// this function's.
func CalculateByteRange(m3uRange string, fallbackOffset int64) (string, error) {
	tokens := strings.Split(strings.TrimSpace(m3uRange), "@")
	if len(tokens) < 1 || len(tokens) > 2 {
		return "", newMalformedRange(m3uRange, nil)
	}

	length, err := strconv.ParseInt(strings.TrimSpace(tokens[0]), 10, 64)
	if err != nil {
		return "", newMalformedRange(m3uRange, err)
	}

	offset := fallbackOffset
	if len(tokens) == 2 {
		offset, err = strconv.ParseInt(strings.TrimSpace(tokens[1]), 10, 64)
		if err != nil {
			return "", newMalformedRange(m3uRange, err)
		}
	}

	end := offset + length - 1
	return fmt.Sprintf("%d-%d", offset, end), nil
}

// RangeEnd returns the end offset encoded in a "O-E" range string produced
// by CalculateByteRange, for deriving the next call's fallbackOffset
// (RangeEnd+1).
func RangeEnd(httpRange string) (int64, error) {
	_, endPart, ok := strings.Cut(httpRange, "-")
	if !ok {
		return 0, newMalformedRange(httpRange, nil)
	}
	end, err := strconv.ParseInt(endPart, 10, 64)
	if err != nil {
		return 0, newMalformedRange(httpRange, err)
	}
	return end, nil
}
