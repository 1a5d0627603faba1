// Package errors defines the coded errors shared by the snowbank commands.
// Every AppError carries a SNBK code, a severity and optional suggestions
// that the CLI prints below the message.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

type ErrorCode string

const (
	// connection (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SNBK1001"
	ErrCodeConnectionTimeout    ErrorCode = "SNBK1002"
	ErrCodeAuthenticationFailed ErrorCode = "SNBK1003"
	ErrCodeNetworkUnavailable   ErrorCode = "SNBK1004"

	// configuration (2xxx)
	ErrCodeConfigInvalid ErrorCode = "SNBK2002"
	ErrCodeConfigMissing ErrorCode = "SNBK2003"

	// catalog (3xxx)
	ErrCodeCatalogParse      ErrorCode = "SNBK3001"
	ErrCodeCatalogLint       ErrorCode = "SNBK3002"
	ErrCodeCatalogCycle      ErrorCode = "SNBK3003"
	ErrCodeCatalogNotFound   ErrorCode = "SNBK3005"
	ErrCodeSourceUnavailable ErrorCode = "SNBK3006"

	// SQL (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "SNBK4001"
	ErrCodeSQLPermission     ErrorCode = "SNBK4002"
	ErrCodeSQLTimeout        ErrorCode = "SNBK4003"
	ErrCodeSQLTransaction    ErrorCode = "SNBK4004"
	ErrCodeSQLObjectNotFound ErrorCode = "SNBK4005"
	ErrCodeSQLExecution      ErrorCode = "SNBK4006"
	ErrCodeStagingFailed     ErrorCode = "SNBK4007"

	// files (5xxx)
	ErrCodeFileNotFound  ErrorCode = "SNBK5001"
	ErrCodeFileOperation ErrorCode = "SNBK5005"

	// validation (6xxx)
	ErrCodeValidationFailed ErrorCode = "SNBK6001"
	ErrCodeInvalidInput     ErrorCode = "SNBK6002"

	// credentials (7xxx)
	ErrCodeEncryptionFailed  ErrorCode = "SNBK7002"
	ErrCodeCredentialMissing ErrorCode = "SNBK7003"

	// data (8xxx)
	ErrCodeGeneratorFailed  ErrorCode = "SNBK8001"
	ErrCodeLandingFailed    ErrorCode = "SNBK8002"
	ErrCodeQualityViolation ErrorCode = "SNBK8003"
	ErrCodeLedger           ErrorCode = "SNBK8004"

	// system (9xxx)
	ErrCodeInternal           ErrorCode = "SNBK9001"
	ErrCodeTimeout            ErrorCode = "SNBK9002"
	ErrCodeServiceUnavailable ErrorCode = "SNBK9004"
	ErrCodeMaxRetriesExceeded ErrorCode = "SNBK9007"
)

type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityWarning  ErrorSeverity = "WARNING"
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError is a coded error with context for logs and suggestions for users.
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]any
	Cause       error
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

func (e *AppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", e.Code, e.Severity, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, "\nCaused by: %v", e.Cause)
	}
	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, s)
		}
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   map[string]any{},
		Timestamp: time.Now(),
	}
}

func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. Context and recoverability of a
// wrapped AppError carry over. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	out := New(code, message)
	out.Cause = err

	var inner *AppError
	if errors.As(err, &inner) {
		maps.Copy(out.Context, inner.Context)
		out.Recoverable = inner.Recoverable
	}
	return out
}

func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable lets Retry try the operation again.
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func wrapOrNew(cause error, code ErrorCode, message string) *AppError {
	if err := Wrap(cause, code, message); err != nil {
		return err
	}
	return New(code, message)
}

// ConnectionError is a recoverable failure to reach Snowflake.
func ConnectionError(message string, cause error) *AppError {
	return wrapOrNew(cause, ErrCodeConnectionFailed, message).
		WithSuggestions(
			"Check your network connection",
			"Verify the Snowflake account identifier and region",
			"Run 'snowbank setup' to review connection settings",
		).
		AsRecoverable()
}

// ConfigError reports a bad value for a config key.
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'snowbank setup' to reconfigure",
		)
}

// sqlFailures refines ErrCodeSQLExecution by the text of the failure.
var sqlFailures = []struct {
	needles     []string
	code        ErrorCode
	suggestions []string
}{
	{[]string{"syntax error"}, ErrCodeSQLSyntax,
		[]string{"Check the statement near the reported position"}},
	{[]string{"does not exist", "not authorized"}, ErrCodeSQLObjectNotFound,
		[]string{"Deploy the RAW layer before AGG, REPORTING and SEMANTIC", "Verify the role can see the referenced object"}},
	{[]string{"permission", "access denied", "insufficient privileges"}, ErrCodeSQLPermission,
		[]string{"Check user permissions in Snowflake", "Verify the role has required privileges"}},
	{[]string{"timeout"}, ErrCodeSQLTimeout,
		[]string{"Increase deployment.timeout", "Check Snowflake warehouse size"}},
}

// SQLError wraps a failed statement. The query is kept in the context,
// truncated to 200 bytes.
func SQLError(message string, query string, cause error) *AppError {
	err := wrapOrNew(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncate(query, 200))

	text := strings.ToLower(message)
	if cause != nil {
		text += " " + strings.ToLower(cause.Error())
	}
	for _, f := range sqlFailures {
		for _, needle := range f.needles {
			if strings.Contains(text, needle) {
				err.Code = f.code
				return err.WithSuggestions(f.suggestions...)
			}
		}
	}
	return err
}

// ValidationError is a recoverable warning about one input value.
func ValidationError(field string, value any, reason string) *AppError {
	return Newf(ErrCodeValidationFailed, "Validation failed for %s: %s", field, reason).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

func IsRecoverable(err error) bool {
	var app *AppError
	return errors.As(err, &app) && app.Recoverable
}

// GetErrorCode returns the code of the first AppError in err's chain, or
// ErrCodeInternal.
func GetErrorCode(err error) ErrorCode {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &AppError{Code: code})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
