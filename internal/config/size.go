package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseSize parses a human-readable size string into bytes.
// Supports: 100, 100B, 100K, 100KB, 100KiB, and the same for M, G, T
// (case-insensitive). Uses powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	numStr := strings.ToUpper(s)
	numStr = strings.TrimSuffix(numStr, "IB")
	if len(numStr) == len(s) && len(numStr) > 1 {
		// "KB" style: drop the trailing B only when a unit letter precedes it.
		switch numStr[len(numStr)-2] {
		case 'K', 'M', 'G', 'T':
			numStr = strings.TrimSuffix(numStr, "B")
		}
	}

	if numStr == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	multiplier := int64(1)
	switch numStr[len(numStr)-1:] {
	case "B":
		numStr = numStr[:len(numStr)-1]
	case "K":
		multiplier = 1 << 10
		numStr = numStr[:len(numStr)-1]
	case "M":
		multiplier = 1 << 20
		numStr = numStr[:len(numStr)-1]
	case "G":
		multiplier = 1 << 30
		numStr = numStr[:len(numStr)-1]
	case "T":
		multiplier = 1 << 40
		numStr = numStr[:len(numStr)-1]
	}

	if numStr == "" || strings.HasPrefix(numStr, "-") {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	// Try integer first, then float.
	if n, err := strconv.ParseInt(numStr, 10, 64); err == nil {
		return n * multiplier, nil
	}

	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	return int64(f * float64(multiplier)), nil
}
