package tools

import (
	"fmt"
	"math"

	"k8s.io/apimachinery/pkg/api/resource"
)

// clampMemoryLimit implements increase_memory_limit's policy:
// new_limit = clamp(max(256Mi, current*2), _, 4Gi); if
// current is unknown the caller passes "" and this returns minLimit
// directly. resource.Quantity parses both binary (Mi/Gi) and decimal
// (M/G) suffixes, so no hand-rolled suffix table is needed.
func clampMemoryLimit(current string, multiplier float64, minLimit, maxLimit string) (newLimit string, err error) {
	min, err := resource.ParseQuantity(minLimit)
	if err != nil {
		return "", fmt.Errorf("parse min limit %q: %w", minLimit, err)
	}
	max, err := resource.ParseQuantity(maxLimit)
	if err != nil {
		return "", fmt.Errorf("parse max limit %q: %w", maxLimit, err)
	}

	if current == "" {
		return roundUpToMi(min.Value()), nil
	}

	cur, err := resource.ParseQuantity(current)
	if err != nil {
		return "", fmt.Errorf("parse current limit %q: %w", current, err)
	}

	curBytes := cur.Value()
	minBytes := min.Value()
	maxBytes := max.Value()

	if curBytes >= maxBytes {
		return current, nil
	}

	targetBytes := int64(float64(curBytes) * multiplier)
	if targetBytes < minBytes {
		targetBytes = minBytes
	}
	if targetBytes > maxBytes {
		targetBytes = maxBytes
	}

	return roundUpToMi(targetBytes), nil
}

// roundUpToMi rounds a byte count up to the nearest whole mebibyte and
// renders it as a Kubernetes memory quantity string, avoiding fractional
// patches.
func roundUpToMi(bytes int64) string {
	const mi = 1024 * 1024
	mis := int64(math.Ceil(float64(bytes) / float64(mi)))
	return fmt.Sprintf("%dMi", mis)
}
