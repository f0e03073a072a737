package tbd

import (
	"io"
	"testing"

	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/pkg/errors"
)

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{ErrInvalidLoadCommand, ClassStructural},
		{errors.Wrap(container.ErrInvalidRange, "symtab"), ClassStructural},
		{&ContainerError{Index: 2, Arch: "arm64", Err: errors.Wrap(ErrPlatformMismatch, "ios")}, ClassMismatch},
		{ErrMultipleUUIDs, ClassMismatch},
		{ErrMissingSymbolTable, ClassMissing},
		{errors.Wrap(container.ErrReadFailed, "short read"), ClassIO},
		{errors.Wrap(ErrTooLarge, "string table"), ClassResource},
		{io.EOF, ClassUnknown},
		{nil, ClassUnknown},
	}
	for _, tt := range tests {
		if got := ErrorClass(tt.err); got != tt.want {
			t.Errorf("ErrorClass(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestContainerError(t *testing.T) {
	err := &ContainerError{Index: 1, Arch: "armv7", Err: ErrFlagsMismatch}
	if got, want := err.Error(), "container 1 (armv7): flags mismatch"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrFlagsMismatch) {
		t.Errorf("errors.Is() = false, want true")
	}
}
