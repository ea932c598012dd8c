package process

import "strings"

// MaxOutputLines bounds the output retained per process.
const MaxOutputLines = 1000

// OutputLine is one line of process output.
type OutputLine struct {
	Content  string
	IsStderr bool
	IsError  bool
}

// StdoutLine builds a stdout line, classifying it as an error by keyword.
func StdoutLine(content string) OutputLine {
	return OutputLine{Content: content, IsError: LooksLikeError(content)}
}

// StderrLine builds a stderr line. Everything on stderr is shown as an error.
func StderrLine(content string) OutputLine {
	return OutputLine{Content: content, IsStderr: true, IsError: true}
}

// NewOutputLine dispatches to StdoutLine or StderrLine.
func NewOutputLine(content string, isStderr bool) OutputLine {
	if isStderr {
		return StderrLine(content)
	}
	return StdoutLine(content)
}

// LooksLikeError matches error, exception, fatal, and failed
// (case-insensitive) plus a literal "Stack trace:".
func LooksLikeError(content string) bool {
	if strings.Contains(content, "Stack trace:") {
		return true
	}
	lower := strings.ToLower(content)
	for _, kw := range []string{"error", "exception", "fatal", "failed"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
