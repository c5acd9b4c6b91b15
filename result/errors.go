package result

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorCategory groups failed link checks by cause.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryRedirectLoop      ErrorCategory = "redirect_loop"
	CategoryUnknown           ErrorCategory = "unknown"
)

// Failure is what a link check observed when the link did not answer
// below 400.
type Failure struct {
	Status       int
	Err          error
	RedirectLoop bool
}

// Category classifies the failure. A redirect loop outranks any status,
// and a status outranks the transport error.
func (f Failure) Category() ErrorCategory {
	switch {
	case f.RedirectLoop:
		return CategoryRedirectLoop
	case f.Status >= 500:
		return Category5xx
	case f.Status >= 400:
		return Category4xx
	case f.Err == nil:
		return CategoryUnknown
	}

	var (
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case errors.As(f.Err, &dnsErr):
		return CategoryDNSFailure
	case errors.Is(f.Err, syscall.ECONNREFUSED),
		strings.Contains(f.Err.Error(), "connection refused"):
		return CategoryConnectionRefused
	case errors.Is(f.Err, context.DeadlineExceeded),
		errors.Is(f.Err, os.ErrDeadlineExceeded),
		errors.As(f.Err, &netErr) && netErr.Timeout():
		return CategoryTimeout
	}
	return CategoryUnknown
}

// Label is the heading used when broken links are grouped by category.
func (c ErrorCategory) Label() string {
	switch c {
	case CategoryTimeout:
		return "Timeouts"
	case CategoryDNSFailure:
		return "DNS Failures"
	case CategoryConnectionRefused:
		return "Connection Refused"
	case Category4xx:
		return "Client Errors (4xx)"
	case Category5xx:
		return "Server Errors (5xx)"
	case CategoryRedirectLoop:
		return "Redirect Loops"
	default:
		return "Other Errors"
	}
}
