// Package crawling collects course reviews from the public rating site and
// folds them into per-course average ratings.
package crawling

import "fmt"

// CrawlError represents a general crawling failure
type CrawlError struct {
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s", e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// PageError is returned when a review page could not be fetched within the retry budget
type PageError struct {
	Page     int
	Attempts int
	Cause    error
}

func (e *PageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("page %d failed after %d attempts: %v", e.Page, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("page %d failed after %d attempts", e.Page, e.Attempts)
}

func (e *PageError) Unwrap() error {
	return e.Cause
}

// RateLimitError is reported when the API answers with its throttling message
type RateLimitError struct {
	Detail string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Detail)
}
