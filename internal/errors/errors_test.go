package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/kiln/pkg/report"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "registry error",
			code:    "K001",
			wantMsg: "Component not found",
			wantCat: CategoryRegistry,
		},
		{
			name:    "reconcile warning",
			code:    "K040",
			wantMsg: "Duplicate key among siblings",
			wantCat: CategoryReconcile,
		},
		{
			name:    "protocol error",
			code:    "P004",
			wantMsg: "Session not found",
			wantCat: CategoryProtocol,
		},
		{
			name:    "unknown error code",
			code:    "K999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestEveryReportCodeIsRegistered(t *testing.T) {
	codes := []string{
		report.CodeComponentNotFound, report.CodeDuplicateComponent, report.CodeTargetNotFound,
		report.CodeInvalidReference, report.CodeLoaderFailed, report.CodeSetupFailed,
		report.CodeReservedHook, report.CodeExpressionFailed, report.CodeHandlerNotFound,
		report.CodeMalformedMarkup, report.CodeHookFailed, report.CodeDuplicateKey,
		report.CodePatchFailed, report.CodeUpdateLoop, report.CodeRenderPanic,
		report.CodeWatcherFailed, report.CodeHandlerFailed,
	}
	for _, code := range codes {
		if _, ok := GetTemplate(code); !ok {
			t.Errorf("%s is not registered", code)
		}
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "file %q not found", "a.yaml")
	if err.Message != `file "a.yaml" not found` {
		t.Errorf("Message = %q, want %q", err.Message, `file "a.yaml" not found`)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestError_Error(t *testing.T) {
	err := New("K001")
	if got, want := err.Error(), "K001: Component not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err.Wrap(fmt.Errorf("no %q", "card"))
	if got, want := err.Error(), `K001: Component not found: no "card"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err2 := &Error{Message: "test error"}
	if err2.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", err2.Error(), "test error")
	}
}

func TestError_WithLocation(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "counter.yaml")
	content := `name: counter
template: |
  <button @click="inc">${count}</button>
state:
  count: 0
actions:
  inc:
    set: cuont
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("K080").WithLocation(tmpFile, 8, 10)
	if err.Location == nil {
		t.Fatal("Location is nil")
	}
	if err.Location.Line != 8 || err.Location.Column != 10 {
		t.Errorf("Location = %v", err.Location)
	}
	if len(err.Context) == 0 {
		t.Error("Context should not be empty")
	}
	if !strings.Contains(strings.Join(err.Context, "\n"), "set: cuont") {
		t.Errorf("Context = %q, want the located line", err.Context)
	}
}

func TestError_Wrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New("K081").Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should see the wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "K081") != nil {
		t.Error("FromError(nil) should be nil")
	}

	plain := FromError(stderrors.New("eof"), "K081")
	if plain.Code != "K081" || plain.Wrapped == nil {
		t.Errorf("plain = %+v", plain)
	}

	existing := New("K002")
	if FromError(existing, "K081") != existing {
		t.Error("diagnostics should pass through")
	}

	re := &report.Error{
		Kind:      report.KindEvaluation,
		Code:      report.CodeExpressionFailed,
		Component: "counter",
		Expr:      "count +",
		Err:       stderrors.New("unexpected token EOF"),
	}
	got := FromError(re, "K081")
	if got.Code != "K020" || got.Component != "counter" || got.Expr != "count +" {
		t.Errorf("from report = %+v", got)
	}
	if got.Category != CategoryEvaluation {
		t.Errorf("Category = %q", got.Category)
	}
}

func TestFromReportHookAndPanic(t *testing.T) {
	re := &report.Error{
		Kind:  report.KindHook,
		Code:  report.CodeHookFailed,
		Hook:  "mount",
		Panic: "nil map",
	}
	got := FromReport(re)
	if got.Message != "Lifecycle hook failed (mount)" {
		t.Errorf("Message = %q", got.Message)
	}
	if got.Wrapped == nil || got.Wrapped.Error() != "panic: nil map" {
		t.Errorf("Wrapped = %v", got.Wrapped)
	}
}

func TestSplit(t *testing.T) {
	a, b, c := stderrors.New("a"), stderrors.New("b"), stderrors.New("c")
	got := Split(stderrors.Join(a, stderrors.Join(b, c)))
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Errorf("Split = %v", got)
	}
	if Split(nil) != nil {
		t.Error("Split(nil) should be nil")
	}
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		loc  *Location
		want string
	}{
		{nil, ""},
		{&Location{File: "a.yaml"}, "a.yaml"},
		{&Location{File: "a.yaml", Line: 3}, "a.yaml:3"},
		{&Location{File: "a.yaml", Line: 3, Column: 7}, "a.yaml:3:7"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("K020").
		WithFile("counter.yaml").
		WithComponent("counter").
		Wrap(stderrors.New("unknown name cuont"))
	err.Expr = "cuont + 1"

	formatted := err.Format()
	for _, want := range []string{
		"ERROR K020: Expression failed",
		"counter.yaml",
		"component: counter",
		"expression: cuont + 1",
		"unknown name cuont",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format should contain %q:\n%s", want, formatted)
		}
	}

	warn := New("K040").Format()
	if !strings.Contains(warn, "WARN K040") {
		t.Errorf("duplicate keys should format as a warning:\n%s", warn)
	}
	if !strings.Contains(warn, "Hint:") {
		t.Error("Format should contain hint")
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("K080").WithLocation("counter.yaml", 10, 5).Wrap(stderrors.New("bad"))
	want := "counter.yaml:10:5: K080: Invalid component document: bad"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	json := New("K001").WithLocation("main.yaml", 10, 5).WithComponent("card").FormatJSON()
	for _, want := range []string{
		`"code":"K001"`,
		`"category":"registry"`,
		`"message":"Component not found"`,
		`"component":"card"`,
		`"location":{"file":"main.yaml","line":10,"column":5}`,
	} {
		if !strings.Contains(json, want) {
			t.Errorf("JSON should contain %s: %s", want, json)
		}
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var b strings.Builder
	PrintError(&b, New("C003"))
	if !strings.Contains(b.String(), "C003: Configuration file not found") {
		t.Errorf("PrintError = %q", b.String())
	}

	b.Reset()
	PrintError(&b, stderrors.New("plain"))
	if !strings.Contains(b.String(), "ERROR: plain") {
		t.Errorf("PrintError = %q", b.String())
	}
}

func TestRegister(t *testing.T) {
	Register("K999", ErrorTemplate{
		Category: CategoryCLI,
		Message:  "Custom test error",
	})
	defer delete(registry, "K999")

	if err := New("K999"); err.Message != "Custom test error" {
		t.Errorf("Message = %q, want %q", err.Message, "Custom test error")
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("short text", 100)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}

	got = wrapText("this is a longer text that should be wrapped", 20)
	if len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}

	if got = wrapText("", 10); len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}

func TestColorFunctions(t *testing.T) {
	EnableColors()
	if !strings.Contains(red("test"), "\033[31m") {
		t.Error("red should contain ANSI code when colors enabled")
	}

	DisableColors()
	if strings.Contains(red("test"), "\033[") {
		t.Error("red should not contain ANSI code when colors disabled")
	}
	EnableColors()
}
