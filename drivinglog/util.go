package drivinglog

import (
	"fmt"
	"strconv"
	"strings"
)

func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Limit saturates v to [-maxAbs, maxAbs].
func Limit(maxAbs, v float64) float64 {
	if v > 0 {
		return min(maxAbs, v)
	}
	return max(-maxAbs, v)
}
