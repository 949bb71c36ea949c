package runner

import (
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxMessageSize caps error messages and header values stored in results.
	DefaultMaxMessageSize = 4096
	// EnvMaxMessageSize is the environment variable to override the default.
	EnvMaxMessageSize = "NODEFLOW_MAX_MESSAGE_SIZE"
)

// truncationMarker is appended to messages cut at the size limit.
const truncationMarker = "...(truncated)"

// SanitizeMessage prepares text coming from remote servers or scripts for
// storage in a test result. Invalid UTF-8 is replaced, control characters
// other than newline, tab and carriage return are stripped, and the result is
// cut to the size limit.
func SanitizeMessage(msg string) string {
	if !utf8.ValidString(msg) {
		msg = strings.ToValidUTF8(msg, "�")
	}

	clean := true
	for _, r := range msg {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if !clean {
		var b strings.Builder
		b.Grow(len(msg))
		for _, r := range msg {
			if !unicode.IsControl(r) || isSafeControl(r) {
				b.WriteRune(r)
			}
		}
		msg = b.String()
	}

	limit := getMaxMessageSize()
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + truncationMarker
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func getMaxMessageSize() int {
	if val := os.Getenv(EnvMaxMessageSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxMessageSize
}
