package apperr

import (
	"errors"
	"testing"
)

func TestKindOfClassifiesConstructedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "bad request", err: BadRequest("missing field"), want: KindBadRequest},
		{name: "bad request wrapping", err: BadRequestf("parse failed", errors.New("boom")), want: KindBadRequest},
		{name: "not found", err: NotFound("no such record"), want: KindNotFound},
		{name: "server error", err: ServerError("write failed", errors.New("disk full")), want: KindServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindOfDefaultsUnknownErrorsToServerError(t *testing.T) {
	if got := KindOf(errors.New("some plain error")); got != KindServerError {
		t.Errorf("KindOf(plain error) = %v, want KindServerError", got)
	}
	if got := KindOf(nil); got != KindServerError {
		t.Errorf("KindOf(nil) = %v, want KindServerError", got)
	}
}

func TestErrorMessageIncludesWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	err := ServerError("write failed", cause)

	if got, want := err.Error(), "write failed: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find wrapped cause")
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := NotFound("no such record")
	if got, want := err.Error(), "no such record"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
