package model

import "errors"

// Error kinds surfaced by the detection engine and its stores.
// Callers match with errors.Is; wrapped context is added with fmt.Errorf("...: %w").
var (
	ErrInvalidBaseline     = errors.New("invalid baseline")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrConfigMissing       = errors.New("config missing")
	ErrDuplicateActive     = errors.New("active alert already exists")
	ErrInvalidSettings     = errors.New("invalid settings")
	ErrInsufficientHistory = errors.New("insufficient history")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidBaseline, "InvalidBaseline"},
	{ErrStoreUnavailable, "StoreUnavailable"},
	{ErrNotFound, "NotFound"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrConfigMissing, "ConfigMissing"},
	{ErrDuplicateActive, "DuplicateActive"},
	{ErrInvalidSettings, "InvalidSettings"},
	{ErrInsufficientHistory, "InsufficientHistory"},
}

// ErrorKind - short label for metrics and logs; "Internal" when err matches no known kind
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
