package bytes

import "fmt"

// Ratio formats used/capacity as a percentage with one decimal.
func Ratio(used, capacity int64) string {
	if capacity <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(used)*100/float64(capacity))
}
