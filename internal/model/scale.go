package model

import "strings"

// Scale is the display unit requested from the station page.
type Scale string

const (
	Celsius    Scale = "celsius"
	Fahrenheit Scale = "fahrenheit"
)

// ParseScale maps a configured scale name to a Scale. Anything that is not
// "fahrenheit" is treated as celsius.
func ParseScale(s string) Scale {
	if strings.EqualFold(strings.TrimSpace(s), string(Fahrenheit)) {
		return Fahrenheit
	}
	return Celsius
}

// QueryType returns the value of the page's "type" query parameter.
func (s Scale) QueryType() string {
	if s == Fahrenheit {
		return "2"
	}
	return "1"
}

func (s Scale) String() string {
	return string(s)
}
