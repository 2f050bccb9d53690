package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNotFound means no matching card or no priced, unsold PSA 10 listing
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRendering represents failures of the page rendering layer
	ErrorTypeRendering ErrorType = "rendering"
	// ErrorTypeParsing represents HTML or price text parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypeStore represents price record store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeLock represents per-card lock errors
	ErrorTypeLock ErrorType = "lock"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// DebugInfo is the best-effort page state captured when rendering fails
type DebugInfo struct {
	Title         string `json:"title,omitempty"`
	SourceSnippet string `json:"source_snippet,omitempty"`
}

// CrawlerError represents a crawler-specific error
type CrawlerError struct {
	Type     ErrorType
	Provider string
	Message  string
	Err      error
	Debug    *DebugInfo
	Time     time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// New creates a new CrawlerError
func New(errType ErrorType, provider, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:     errType,
		Provider: provider,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewNotFound creates a new not-found error
func NewNotFound(provider, message string) *CrawlerError {
	return New(ErrorTypeNotFound, provider, message, nil)
}

// NewRendering creates a new rendering error carrying the captured page state
func NewRendering(provider, message string, err error, debug *DebugInfo) *CrawlerError {
	e := New(ErrorTypeRendering, provider, message, err)
	e.Debug = debug
	return e
}

// NewParsing creates a new parsing error for stored or scraped text
func NewParsing(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, provider, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(provider string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, provider, message, nil)
}

// NewCache creates a new cache error
func NewCache(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, provider, message, err)
}

// NewStore creates a new store error
func NewStore(message string, err error) *CrawlerError {
	return New(ErrorTypeStore, "store", message, err)
}

// NewLock creates a new lock error
func NewLock(key string, err error) *CrawlerError {
	return New(ErrorTypeLock, "lock", fmt.Sprintf("acquire lock for %q", key), err)
}

// NewPublisher creates a new publisher error
func NewPublisher(provider, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, provider, message, err)
}

// NewValidation creates a new validation error
func NewValidation(provider, message string) *CrawlerError {
	return New(ErrorTypeValidation, provider, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "config", message, err)
}

// TypeOf returns the ErrorType of the first CrawlerError in err's chain, or "" if there is none
func TypeOf(err error) ErrorType {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.Type
	}
	return ""
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsRendering reports whether err is a rendering error
func IsRendering(err error) bool {
	return TypeOf(err) == ErrorTypeRendering
}

// DebugOf returns the debug info attached to err, if any
func DebugOf(err error) *DebugInfo {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.Debug
	}
	return nil
}
