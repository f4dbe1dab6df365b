package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ve, ok := As(err)
	if !ok {
		ve = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ve.Message)
	if ve.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ve.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ve.Code)

	return sb.String()
}

// LogAttrs returns slog attributes describing err. Plain errors produce a
// single "error" attribute.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	ve, ok := As(err)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error", ve.Message),
		slog.String("error_code", ve.Code),
		slog.String("category", string(ve.Category)),
		slog.Bool("retryable", ve.Retryable),
	}
	if ve.Cause != nil && ve.Cause.Error() != ve.Message {
		attrs = append(attrs, slog.String("cause", ve.Cause.Error()))
	}

	keys := make([]string, 0, len(ve.Details))
	for k := range ve.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("detail_"+k, ve.Details[k]))
	}

	return attrs
}
