package core

import "fmt"

// BatchCodePrefix prefixes batch codes and names their sequence scope.
const BatchCodePrefix = "LOT"

// FormatItemCode renders an item code such as SIS-2026-0001.
func FormatItemCode(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// FormatBatchCode renders a batch code such as LOT-2026-0001.
func FormatBatchCode(year, seq int) string {
	return FormatItemCode(BatchCodePrefix, year, seq)
}
