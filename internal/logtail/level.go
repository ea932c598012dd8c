package logtail

import "strings"

// Level is a Laravel (Monolog) log severity. LevelUnknown marks lines that
// carry no parseable level, such as stack trace continuations.
type Level int

const (
	LevelUnknown Level = iota
	LevelDebug
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
	LevelAlert
	LevelEmergency
)

var levelNames = [...]string{
	LevelUnknown:   "unknown",
	LevelDebug:     "debug",
	LevelInfo:      "info",
	LevelNotice:    "notice",
	LevelWarning:   "warning",
	LevelError:     "error",
	LevelCritical:  "critical",
	LevelAlert:     "alert",
	LevelEmergency: "emergency",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// IsError reports whether l is error or more severe.
func (l Level) IsError() bool { return l >= LevelError }

// ParseLevelName parses a level name case-insensitively.
// "warn" is accepted for warning. Unknown names yield LevelUnknown, false.
func ParseLevelName(name string) (Level, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warn" {
		return LevelWarning, true
	}
	for l, n := range levelNames {
		if l != int(LevelUnknown) && n == name {
			return Level(l), true
		}
	}
	return LevelUnknown, false
}

// ParseLevel extracts the level from a Laravel log line of the form
// "[YYYY-MM-DD HH:MM:SS] env.LEVEL: message".
func ParseLevel(line string) Level {
	end := strings.IndexByte(line, ']')
	if !strings.HasPrefix(line, "[") || end < 0 {
		return LevelUnknown
	}
	rest := line[end+1:]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return LevelUnknown
	}
	head := strings.TrimSpace(rest[:colon])
	dot := strings.LastIndexByte(head, '.')
	if dot < 0 {
		return LevelUnknown
	}
	l, _ := ParseLevelName(head[dot+1:])
	return l
}

// Passes reports whether an entry at level l is shown under a minimum
// severity filter. Lines without a level always pass so stack traces stay
// attached to their header.
func (l Level) Passes(min Level) bool {
	return l == LevelUnknown || l >= min
}

// IsStackTraceLine matches PHP stack frames and "Stack trace:" headers.
func IsStackTraceLine(line string) bool {
	t := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(t, "Stack trace:"):
		return true
	case len(t) > 1 && t[0] == '#' && t[1] >= '0' && t[1] <= '9':
		return true
	case strings.Contains(t, " at ") && (strings.Contains(t, ".php:") || strings.Contains(t, "vendor/")):
		return true
	case strings.HasPrefix(t, "in ") && strings.Contains(t, ".php"):
		return true
	}
	return false
}
