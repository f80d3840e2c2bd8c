package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "evaluation error",
			code:    CodeEvaluation,
			wantMsg: "Expression evaluation failed",
			wantCat: CategoryEvaluation,
		},
		{
			name:    "ambiguous scope",
			code:    CodeAmbiguousScope,
			wantMsg: "Ambiguous scope name",
			wantCat: CategoryScope,
		},
		{
			name:    "binding error",
			code:    CodeArrayWithoutModel,
			wantMsg: "Array binding without a model",
			wantCat: CategoryBinding,
		},
		{
			name:    "unknown error code",
			code:    "R999",
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

func TestNewf(t *testing.T) {
	err := Newf(CategoryConfig, "key %q missing", "sweepInterval")
	if err.Message != `key "sweepInterval" missing` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryConfig {
		t.Errorf("Category = %q, want %q", err.Category, CategoryConfig)
	}
}

func TestError_Error(t *testing.T) {
	err := New(CodeEvaluation)
	if got, want := err.Error(), "R001: Expression evaluation failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := New(CodeEvaluation).Wrap(fmt.Errorf("ReferenceError: x is not defined"))
	if !strings.HasSuffix(wrapped.Error(), "ReferenceError: x is not defined") {
		t.Errorf("wrapped Error() = %q", wrapped.Error())
	}

	bare := &Error{Message: "test error"}
	if bare.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", bare.Error(), "test error")
	}
}

func TestError_Builders(t *testing.T) {
	err := New(CodeEvaluation).
		WithExpression("a +").
		WithSuggestion("close the expression").
		WithDetail("custom detail")

	if err.Expression != "a +" {
		t.Errorf("Expression = %q", err.Expression)
	}
	if err.Suggestion != "close the expression" {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
	if err.Detail != "custom detail" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := New(CodeInterrupted).Wrap(inner)

	if !stderrors.Is(err, inner) {
		t.Error("errors.Is should reach the wrapped error")
	}
	if !HasCode(err, CodeInterrupted) {
		t.Error("HasCode should match the error's own code")
	}
	if HasCode(err, CodeEvaluation) {
		t.Error("HasCode should not match a different code")
	}

	outer := fmt.Errorf("context: %w", err)
	if !HasCode(outer, CodeInterrupted) {
		t.Error("HasCode should see through fmt wrapping")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeEvaluation) != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	re := New(CodeEvaluation)
	if FromError(re, CodeInterrupted) != re {
		t.Error("FromError should return *Error as-is")
	}

	std := fmt.Errorf("plain")
	got := FromError(std, CodeConfigRead)
	if got.Wrapped != std || got.Code != CodeConfigRead {
		t.Errorf("FromError = %+v", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeEvaluation).
		WithExpression("user.name.first").
		WithSuggestion("check that user.name exists").
		Wrap(fmt.Errorf("TypeError: Cannot read property 'first' of undefined"))

	out := err.Format()
	for _, want := range []string{
		"ERROR R001: Expression evaluation failed",
		"> user.name.first",
		"TypeError",
		"Hint: check that user.name exists",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New(CodeEvaluation).WithExpression("a.b")
	if got, want := err.FormatCompact(), "R001: Expression evaluation failed (a.b)"; got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New(CodeArrayWithoutModel).WithExpression("tags").Wrap(fmt.Errorf("cause"))

	var decoded map[string]any
	if jerr := json.Unmarshal([]byte(err.FormatJSON()), &decoded); jerr != nil {
		t.Fatalf("FormatJSON is not valid JSON: %v", jerr)
	}
	if decoded["code"] != CodeArrayWithoutModel {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["category"] != string(CategoryBinding) {
		t.Errorf("category = %v", decoded["category"])
	}
	if decoded["expression"] != "tags" || decoded["cause"] != "cause" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, New(CodeDestroyed))
	if !strings.Contains(buf.String(), "R007") {
		t.Errorf("PrintError output = %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, fmt.Errorf("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("PrintError output = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 40), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than width", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
}

func TestAllCodesRegistered(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("no codes registered")
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has incomplete template %+v", code, tmpl)
		}
	}
}
