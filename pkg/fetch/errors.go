package fetch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ToolError is returned when the fetch tool exits non-zero
type ToolError struct {
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("fetch tool exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("fetch tool exited with code %d: %s", e.ExitCode, msg)
}

var sourceMissingSignatures = []string{
	"not found",
	"http error 404",
	"http error 410",
	"video unavailable",
	"this video is unavailable",
	"is not available",
	"does not exist",
	"unsupported url",
	"no video formats",
	"private video",
}

// server side failures are transient even when their reason phrase reads like a missing source
var serverErrorPattern = regexp.MustCompile(`http error 5\d\d`)

// IsSourceMissing reports whether err means the source has nothing to download.
// These failures are permanent and not worth retrying.
func IsSourceMissing(err error) bool {
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		return false
	}

	stderr := strings.ToLower(toolErr.Stderr)
	if serverErrorPattern.MatchString(stderr) {
		return false
	}
	for _, sig := range sourceMissingSignatures {
		if strings.Contains(stderr, sig) {
			return true
		}
	}
	return false
}
