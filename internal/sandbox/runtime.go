package sandbox

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

const (
	timeoutReason = "execution timeout exceeded"
	cancelReason  = "context cancelled"
)

var linePattern = regexp.MustCompile(`Line (\d+):\d+`)

// Runtime wraps a goja VM preloaded with the component prelude
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	r := &Runtime{config: config}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) init() error {
	r.vm = goja.New()
	if r.config.MaxCallStackSize > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}
	r.console = nil
	return r.setupGlobals()
}

// Check compiles the script without running it and reports syntax errors
func Check(name, script string) error {
	if _, err := goja.Compile(name, script, false); err != nil {
		return scriptError(err, true)
	}
	return nil
}

// Execute runs a script with the given string globals under the configured timeout
func (r *Runtime) Execute(ctx context.Context, script string, globals map[string]string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	vm := r.vm
	vm.ClearInterrupt()

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()

	for name, value := range globals {
		if err := vm.Set(name, value); err != nil {
			return nil, err
		}
	}

	done := make(chan struct{})
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt(timeoutReason)
		case <-ctx.Done():
			vm.Interrupt(cancelReason)
		case <-done:
		}
	}()

	val, err := vm.RunString(script)
	close(done)

	result := &Result{Duration: time.Since(start)}
	r.consoleMu.Lock()
	result.Console = append([]LogEntry(nil), r.console...)
	r.consoleMu.Unlock()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if interrupted.Value() == cancelReason && ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, ErrExecutionTimeout
		}
		return result, scriptError(err, false)
	}

	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		result.Value = val.Export()
	}
	return result, nil
}

// setupGlobals removes host escape hatches and installs the component prelude
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	console := r.vm.NewObject()
	for _, level := range []string{"log", "debug", "info", "warn", "error"} {
		if r.config.EnableConsole {
			_ = console.Set(level, r.makeConsoleFunc(level))
		} else {
			_ = console.Set(level, noop)
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}
	_ = r.vm.Set("setTimeout", noop)
	_ = r.vm.Set("setInterval", noop)

	program, err := compiledPrelude()
	if err != nil {
		return err
	}
	_, err = r.vm.RunProgram(program)
	return err
}

// compiledPrelude parses the prelude once; every runtime rebuild reuses it
var compiledPrelude = sync.OnceValues(func() (*goja.Program, error) {
	return goja.Compile("prelude.js", prelude, false)
})

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{Level: level, Message: strings.Join(parts, " "), Time: time.Now()})
		r.consoleMu.Unlock()
		return goja.Undefined()
	}
}

// Reset replaces the VM so no declarations leak between executions
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.init()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.console = nil
	return nil
}

func scriptError(err error, syntax bool) *ScriptError {
	msg := err.Error()
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if v := ex.Value(); v != nil {
			msg = v.String()
		}
	}
	var compileErr *goja.CompilerSyntaxError
	if errors.As(err, &compileErr) {
		syntax = true
	}

	se := &ScriptError{Message: msg, Syntax: syntax}
	if m := linePattern.FindStringSubmatch(err.Error()); m != nil {
		se.Line, _ = strconv.Atoi(m[1])
	}
	return se
}
