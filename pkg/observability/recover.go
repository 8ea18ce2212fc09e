package observability

import "runtime/debug"

// RecoverPanicWithCallback recovers a panic from the surrounding
// function, logs it with the stack trace, and then invokes callback.
// Must be called directly from a defer statement. The panic is not
// re-raised.
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic":   r,
			"context": context,
			"stack":   string(debug.Stack()),
		}).Error("panic recovered")
		if callback != nil {
			callback()
		}
	}
}
