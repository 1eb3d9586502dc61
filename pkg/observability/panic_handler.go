package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the stack trace.
// Call it in a defer:
//
//	defer observability.RecoverPanic(logger, "flush loop")
//
// The panic is swallowed after logging, so the surrounding goroutine
// keeps the process alive. State touched by the panicking code may be
// inconsistent afterwards.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback recovers and logs a panic, then runs the
// callback. The callback only fires on an actual panic, which makes
// it the place to write an error response or close a channel that
// the panicking path never reached:
//
//	defer observability.RecoverPanicWithCallback(logger, "http handler", func() {
//	    httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
//	})
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}

// MustRecover converts a recovered panic value into an error:
//
//	defer func() {
//	    if e := observability.MustRecover(recover()); e != nil {
//	        err = e
//	    }
//	}()
//
// Returns nil when no panic occurred.
func MustRecover(r interface{}) error {
	if r == nil {
		return nil
	}
	return fmt.Errorf("panic: %v", r)
}
