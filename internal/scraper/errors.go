package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every *FetchError via errors.Is.
	ErrFetch = errors.New("fetch failed")
	// ErrParse matches every *ParseError via errors.Is.
	ErrParse = errors.New("parse failed")
)

// FetchError is a transport failure or a non-200 answer from the station page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ParseError means the temperature field was missing or not numeric.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "parse temperature: " + e.Reason
	}
	return fmt.Sprintf("parse temperature %q: %s", e.Field, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }
