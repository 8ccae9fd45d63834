package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		msg     string
		wantNil bool
		wantMsg string
	}{
		{
			name:    "wrap nil error",
			err:     nil,
			msg:     "context",
			wantNil: true,
		},
		{
			name:    "wrap real error",
			err:     errors.New("original"),
			msg:     "context",
			wantMsg: "context: original",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapError(tt.err, tt.msg)

			if tt.wantNil {
				if result != nil {
					t.Errorf("WrapError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("WrapError() returned nil, want error")
			}
			if result.Error() != tt.wantMsg {
				t.Errorf("WrapError().Error() = %s, want %s", result.Error(), tt.wantMsg)
			}
			if !errors.Is(result, tt.err) {
				t.Error("Wrapped error should contain original error")
			}
		})
	}
}

func TestWrapErrorf(t *testing.T) {
	if WrapErrorf(nil, "target %s", "zsh") != nil {
		t.Error("WrapErrorf(nil) should return nil")
	}

	err := WrapErrorf(ErrCommandNotFound, "target %s", "npm")
	if err.Error() != "target npm: command not found" {
		t.Errorf("WrapErrorf().Error() = %s", err.Error())
	}
	if !IsCommandNotFound(err) {
		t.Error("wrapped ErrCommandNotFound should be detected")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"not found error", ErrNotFound, true},
		{"wrapped not found", fmt.Errorf("profile office: %w", ErrNotFound), true},
		{"other error", ErrUnknownTarget, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMultiError(t *testing.T) {
	me := NewMultiError()
	me.Add(nil)
	if me.Err() != nil {
		t.Error("Err() on empty MultiError should return nil")
	}

	err1 := errors.New("apt: permission denied")
	err2 := fmt.Errorf("npm: %w", ErrCommandNotFound)
	me.Add(err1)
	if me.Error() != err1.Error() {
		t.Errorf("single error message = %q", me.Error())
	}
	me.Add(err2)

	if me.Len() != 2 {
		t.Errorf("Len() = %d, want 2", me.Len())
	}
	if me.Err() != me {
		t.Error("Err() with errors should return the MultiError itself")
	}
	if !strings.HasPrefix(me.Error(), "2 errors occurred") {
		t.Errorf("Error() = %s", me.Error())
	}
	if !strings.Contains(me.Error(), "permission denied") {
		t.Errorf("Error() should list every message, got %s", me.Error())
	}
	if !errors.Is(me, ErrCommandNotFound) {
		t.Error("errors.Is should see through MultiError")
	}
}
