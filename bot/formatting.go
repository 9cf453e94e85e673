package bot

import (
	"fmt"
	"strings"

	"earnings/models"
)

// FormatCount formats a count with thousand separators
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}

	str := fmt.Sprintf("%d", n)
	digits := len(str)
	if digits <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (digits-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	return result.String()
}

// FormatPeriod renders a period as its date range, e.g. "2024-10-01 → 2024-10-15"
func FormatPeriod(p models.Period) string {
	return fmt.Sprintf("%s → %s", p.DateString(), p.EndDate().Format(models.DateLayout))
}
