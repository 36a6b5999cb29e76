package conductor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxGoalSize is 16KB.
	DefaultMaxGoalSize = 16 * 1024
	// EnvMaxGoalSize is the environment variable to override the default.
	EnvMaxGoalSize = "CONDUCTOR_MAX_GOAL_SIZE"
)

var (
	ErrGoalTooLarge = errors.New("goal exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("goal contains invalid UTF-8 sequences")
)

// SanitizeGoal enforces the size limit, validates UTF-8, strips control
// characters other than newline, tab and carriage return, and trims spaces.
func SanitizeGoal(goal string) (string, error) {
	limit := maxGoalSize()
	if len(goal) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrGoalTooLarge, len(goal), limit)
	}
	if !utf8.ValidString(goal) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(goal, unsafeControl) < 0 {
		return strings.TrimSpace(goal), nil
	}

	var b strings.Builder
	b.Grow(len(goal))
	for _, r := range goal {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxGoalSize() int {
	if val := os.Getenv(EnvMaxGoalSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxGoalSize
}
