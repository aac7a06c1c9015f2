package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid request"), false},
		{"explicit", NewTransientError(errors.New("slow down"), 429), true},
		{"wrapped explicit", fmt.Errorf("llm: %w", NewTransientError(errors.New("x"), 503)), true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", fmt.Errorf("call: %w", timeoutErr{}), true},
		{"broken pipe text", errors.New("write tcp: Broken Pipe"), true},
		{"overloaded text", errors.New("model is overloaded"), true},
		{"context canceled", fmt.Errorf("stop: %w", context.Canceled), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	tests := map[int]bool{
		200: false,
		400: false,
		401: false,
		404: false,
		408: true,
		429: true,
		500: true,
		502: true,
		503: true,
		504: true,
		529: true,
	}
	for code, want := range tests {
		if got := IsTransientHTTPStatus(code); got != want {
			t.Errorf("IsTransientHTTPStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestTransientError_UnwrapAndMessage(t *testing.T) {
	inner := errors.New("upstream 503")
	te := NewTransientError(inner, 503)
	if !errors.Is(te, inner) {
		t.Error("expected errors.Is to find inner error")
	}
	if te.Error() != "upstream 503" {
		t.Errorf("unexpected message %q", te.Error())
	}
	if te.StatusCode != 503 {
		t.Errorf("unexpected status %d", te.StatusCode)
	}
}
