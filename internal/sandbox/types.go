package sandbox

import (
	"context"
	"errors"
	"time"
)

// Execution errors
var (
	ErrExecutionTimeout = errors.New("sandbox execution timeout exceeded")
	ErrPoolClosed       = errors.New("sandbox pool is closed")
	ErrAcquireTimeout   = errors.New("sandbox acquisition timeout")
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Execution timeout per script
	AcquireTimeout   time.Duration // Maximum wait for a pooled runtime
	MaxCallStackSize int           // Recursion guard
	EnableConsole    bool          // Capture console.log/warn/error
}

// DefaultConfig returns the configuration used for artifact validation
func DefaultConfig() Config {
	return Config{
		Timeout:          2 * time.Second,
		AcquireTimeout:   5 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}

// Result holds execution result
type Result struct {
	Value    any           // Exported return value
	Console  []LogEntry    // Console output
	Duration time.Duration // Execution time
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ScriptError is an exception or syntax error raised by the script
type ScriptError struct {
	Message string
	Line    int
	Syntax  bool
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Executor runs scripts in an isolated runtime
type Executor interface {
	Execute(ctx context.Context, script string, globals map[string]string) (*Result, error)
}
