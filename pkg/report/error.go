package report

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Kind classifies a reported runtime error by the stage that produced it.
type Kind uint8

const (
	// KindRegistry covers failures resolving a component reference or mount target.
	KindRegistry Kind = iota + 1

	// KindSetup covers failures while running a definition's setup function.
	KindSetup

	// KindEvaluation covers template and expression failures. The render pass
	// that produced it is aborted and the live tree is left untouched.
	KindEvaluation

	// KindHook covers lifecycle hook failures.
	KindHook

	// KindReconcile covers recoverable reconciliation problems such as
	// duplicate keys. These are warnings.
	KindReconcile

	// KindScheduler covers flush-level failures: render panics and runaway
	// update loops.
	KindScheduler

	// KindWatcher covers panics inside signal watchers.
	KindWatcher

	// KindHandler covers failures inside event handlers.
	KindHandler
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindSetup:
		return "setup"
	case KindEvaluation:
		return "evaluation"
	case KindHook:
		return "hook"
	case KindReconcile:
		return "reconcile"
	case KindScheduler:
		return "scheduler"
	case KindWatcher:
		return "watcher"
	case KindHandler:
		return "handler"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Codes identify reported errors. They line up with the diagnostics
// registry printed by the CLI.
const (
	CodeComponentNotFound  = "K001"
	CodeDuplicateComponent = "K002"
	CodeTargetNotFound     = "K003"
	CodeInvalidReference   = "K004"
	CodeLoaderFailed       = "K005"

	CodeSetupFailed  = "K010"
	CodeReservedHook = "K011"

	CodeExpressionFailed = "K020"
	CodeHandlerNotFound  = "K021"
	CodeMalformedMarkup  = "K022"

	CodeHookFailed = "K030"

	CodeDuplicateKey = "K040"
	CodePatchFailed  = "K041"

	CodeUpdateLoop  = "K050"
	CodeRenderPanic = "K051"

	CodeWatcherFailed = "K060"

	CodeHandlerFailed = "K070"
)

// Error is the single payload passed to every Reporter.
type Error struct {
	Kind Kind

	// Code is a stable identifier such as "K020".
	Code string

	// Component is the definition name, when known.
	Component string

	// Instance is the component instance id, zero when not applicable.
	Instance uint64

	// Hook names the lifecycle hook or event that failed.
	Hook string

	// Expr is the template expression or binding source involved.
	Expr string

	// Err is the underlying error. Nil when the failure was a panic.
	Err error

	// Panic holds the recovered value when the failure was a panic.
	Panic any

	// Stack is the goroutine stack captured at recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Component != "" {
		fmt.Fprintf(&b, " in <%s>", e.Component)
	}
	if e.Hook != "" {
		fmt.Fprintf(&b, " (%s)", e.Hook)
	}
	if e.Expr != "" {
		fmt.Fprintf(&b, " at %q", e.Expr)
	}
	switch {
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Panic != nil:
		fmt.Fprintf(&b, ": panic: %v", e.Panic)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Warning reports whether the error is advisory. Warnings never abort work.
func (e *Error) Warning() bool {
	return e.Kind == KindReconcile && e.Code != CodePatchFailed
}

// Recovered builds an Error from a value returned by recover(), capturing the
// current stack. If r is itself an error it is kept as Err as well.
func Recovered(kind Kind, code string, r any) *Error {
	e := &Error{
		Kind:  kind,
		Code:  code,
		Panic: r,
		Stack: debug.Stack(),
	}
	if err, ok := r.(error); ok {
		e.Err = err
	}
	return e
}
