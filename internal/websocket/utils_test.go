package websocket

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/gorilla/websocket"
)

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", os.ErrDeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("read: %w", os.ErrDeadlineExceeded), true},
		{"peer close", &websocket.CloseError{Code: websocket.CloseGoingAway}, false},
		{"eof", io.EOF, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsTimeout(tt.err); got != tt.want {
			t.Errorf("%s: IsTimeout = %v, want %v", tt.name, got, tt.want)
		}
	}
}
