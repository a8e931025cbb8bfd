package repository

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/scraper"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseTemperature reads the leading decimal number of a scraped field, so
// "21.5 °C" parses as 21.5. Empty or non-numeric text is a *scraper.ParseError.
func ParseTemperature(field string) (float64, error) {
	trimmed := strings.TrimSpace(field)
	if trimmed == "" {
		return 0, &scraper.ParseError{Field: field, Reason: "empty"}
	}
	num := leadingNumber.FindString(trimmed)
	if num == "" {
		return 0, &scraper.ParseError{Field: field, Reason: "not numeric"}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, &scraper.ParseError{Field: field, Reason: err.Error()}
	}
	return v, nil
}
