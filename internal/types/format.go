package types

import "strconv"

// FormatNumber renders a credit or count value in its shortest form, so 2 is
// "2" and 2.5 is "2.5".
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
