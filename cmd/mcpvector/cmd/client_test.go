package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/httpapi"
)

func TestServerURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"127.0.0.1", 5000, "http://127.0.0.1:5000"},
		{"0.0.0.0", 5000, "http://127.0.0.1:5000"},
		{"", 6000, "http://127.0.0.1:6000"},
		{"::", 5000, "http://127.0.0.1:5000"},
		{"::1", 5000, "http://[::1]:5000"},
		{"search.local", 80, "http://search.local:80"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, serverURL(tt.host, tt.port))
		})
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "status error",
			err:  &httpapi.StatusError{StatusCode: 503, Detail: "indexer not initialized"},
			want: []string{"Error: indexer not initialized", "Status: 503"},
		},
		{
			name: "structured error",
			err:  verrors.New(verrors.ErrCodeConfigInvalid, "invalid configuration: server.port", nil).WithSuggestion("Fix the port"),
			want: []string{"Error: invalid configuration: server.port", "Hint: Fix the port", "Code: " + verrors.ErrCodeConfigInvalid},
		},
		{
			name: "wrapped cancellation",
			err:  fmt.Errorf("serve: %w", context.Canceled),
			want: []string{"Interrupted"},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: []string{"Error: boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatError(tt.err)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}
