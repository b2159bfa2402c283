package remote

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "server error", err: &StatusError{StatusCode: 500}, want: true},
		{name: "bad gateway", err: &StatusError{StatusCode: 502}, want: true},
		{name: "rate limited", err: &StatusError{StatusCode: 429}, want: true},
		{name: "not found", err: &StatusError{StatusCode: 404}, want: false},
		{name: "validation rejection", err: &StatusError{StatusCode: 422}, want: false},
		{name: "wrapped status", err: fmt.Errorf("client.R.Get > %w", &StatusError{StatusCode: 400}), want: false},
		{name: "transport failure", err: errors.New("dial tcp: connection refused"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&StatusError{StatusCode: 404}))
	assert.True(t, IsNotFound(fmt.Errorf("client.R.Get > %w", &StatusError{StatusCode: 404})))
	assert.False(t, IsNotFound(&StatusError{StatusCode: 500}))
	assert.False(t, IsNotFound(errors.New("connection refused")))
	assert.False(t, IsNotFound(nil))
}
