package template

import (
	"errors"
	"fmt"

	"github.com/vango-dev/kiln/pkg/report"
)

var (
	ErrUnterminated     = errors.New("template: unterminated ${")
	ErrEmptyExpression  = errors.New("template: empty ${}")
	ErrUnknownName      = errors.New("template: unknown name")
	ErrHandlerNotFound  = errors.New("template: handler not found")
	ErrInvalidHandler   = errors.New("template: invalid handler binding")
	ErrMarkerInAttrName = errors.New("template: expression in attribute name")
)

// Error is an evaluation failure. It aborts the whole render pass.
type Error struct {
	// Code is the report code for the failure.
	Code string

	// Expr is the expression or binding source that failed.
	Expr string

	Err error
}

func (e *Error) Error() string {
	if e.Expr == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Expr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func exprError(src string, err error) *Error {
	return &Error{Code: report.CodeExpressionFailed, Expr: src, Err: err}
}

func handlerError(src string, err error) *Error {
	return &Error{Code: report.CodeHandlerNotFound, Expr: src, Err: err}
}

func markupError(err error) *Error {
	return &Error{Code: report.CodeMalformedMarkup, Err: err}
}
