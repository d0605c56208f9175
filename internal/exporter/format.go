package exporter

import (
	"strconv"
)

// formatFloat writes values with two decimals so 13.4 appears as 13.40
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
