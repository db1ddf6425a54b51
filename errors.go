package bird

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrQueryIDNotFound is returned when every candidate query id answered 404,
// including after a forced refresh.
var ErrQueryIDNotFound = errors.New("query id not found (HTTP 404)")

// ErrNotFound is returned when a response carries no usable entity.
var ErrNotFound = errors.New("not found")

// ErrMissingCredentials is returned by NewClient without both cookies.
var ErrMissingCredentials = errors.New("both auth_token and ct0 are required")

// TransportError is a connection or timeout failure.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Account and request failures reported by the API through error codes.
// An UpstreamError matches them with errors.Is.
var (
	ErrRateLimited      = errors.New("rate limited")
	ErrAccountSuspended = errors.New("account suspended")
	ErrAccountLocked    = errors.New("account locked")
	ErrAuthExpired      = errors.New("could not authenticate")
	ErrBlocked          = errors.New("blocked from performing action")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrAutomated        = errors.New("request looks automated")
)

// UpstreamError is a non-404 HTTP failure or a GraphQL errors array without data.
type UpstreamError struct {
	Operation string
	Status    int
	Message   string
	Codes     []int
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 && e.Status != 200 {
		return fmt.Sprintf("%s HTTP %d: %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Is matches the sentinel for any returned error code. HTTP 429 matches
// ErrRateLimited and HTTP 401 matches ErrAuthExpired.
func (e *UpstreamError) Is(target error) bool {
	switch {
	case target == ErrRateLimited && e.Status == 429:
		return true
	case target == ErrAuthExpired && e.Status == 401:
		return true
	}
	for _, code := range e.Codes {
		if s := classOf(code).sentinel(); s != nil && s == target {
			return true
		}
	}
	return false
}

// HasCode reports whether the API returned the given error code.
func (e *UpstreamError) HasCode(code int) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// RateLimited reports whether the failure was caused by rate limiting.
func (e *UpstreamError) RateLimited() bool {
	return errors.Is(e, ErrRateLimited) || strings.Contains(strings.ToLower(e.Message), "rate limit")
}

func isRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.RateLimited()
}

// errorClass categorizes API error codes for targeted handling.
type errorClass int

const (
	errNone          errorClass = iota
	errRateLimited              // 88 rate limit exceeded
	errSuspended                // 64 account suspended
	errLocked                   // 326 account locked
	errCSRF                     // 353 csrf token mismatch
	errAuthExpired              // 32 could not authenticate
	errBlocked                  // 161 blocked from performing action
	errNotAuthorized            // 179, 219 not authorized
	errAutomated                // 226 request looks automated
)

func classOf(code int) errorClass {
	switch code {
	case 88:
		return errRateLimited
	case 64:
		return errSuspended
	case 326:
		return errLocked
	case 353:
		return errCSRF
	case 32:
		return errAuthExpired
	case 161:
		return errBlocked
	case 179, 219:
		return errNotAuthorized
	case 226:
		return errAutomated
	}
	return errNone
}

// sentinel is the exported error for the class. CSRF mismatches are
// repaired by the request layer and have none.
func (c errorClass) sentinel() error {
	switch c {
	case errRateLimited:
		return ErrRateLimited
	case errSuspended:
		return ErrAccountSuspended
	case errLocked:
		return ErrAccountLocked
	case errAuthExpired:
		return ErrAuthExpired
	case errBlocked:
		return ErrBlocked
	case errNotAuthorized:
		return ErrNotAuthorized
	case errAutomated:
		return ErrAutomated
	}
	return nil
}

// apiError is one entry of a GraphQL or REST errors array.
type apiError struct {
	Message string `json:"message"`
	Code    *int   `json:"code"`
}

func parseAPIErrors(body []byte) []apiError {
	var errResp struct {
		Errors []apiError `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil {
		return nil
	}
	return errResp.Errors
}

// classifyError returns the class of the first known error code in body.
func classifyError(body []byte) errorClass {
	for _, e := range parseAPIErrors(body) {
		if e.Code == nil {
			continue
		}
		if c := classOf(*e.Code); c != errNone {
			return c
		}
	}
	return errNone
}

// formatErrors joins messages as "message (code)".
func formatErrors(errs []apiError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		switch {
		case e.Code != nil:
			parts = append(parts, fmt.Sprintf("%s (%d)", e.Message, *e.Code))
		case e.Message != "":
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, ", ")
}

func errorCodes(errs []apiError) []int {
	var codes []int
	for _, e := range errs {
		if e.Code != nil {
			codes = append(codes, *e.Code)
		}
	}
	return codes
}

// envelopeError returns an UpstreamError when body carries errors and no
// usable data.
func envelopeError(operation string, body []byte) error {
	errs := parseAPIErrors(body)
	if len(errs) == 0 || hasResponseData(body) {
		return nil
	}
	return &UpstreamError{Operation: operation, Status: 200, Message: formatErrors(errs), Codes: errorCodes(errs)}
}

// parseRateLimitReset parses the X-Rate-Limit-Reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// hasResponseData returns true if the JSON body contains a non-null "data" field.
func hasResponseData(body []byte) bool {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return false
	}
	s := strings.TrimSpace(string(envelope.Data))
	return len(s) > 0 && s != "null" && s != "{}"
}
