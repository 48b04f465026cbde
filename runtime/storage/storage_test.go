package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple", "recordings/abc.tar", false},
		{"flat", "abc.tar", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "../secret", true},
		{"inner traversal", "recordings/../../x", true},
		{"dot", ".", true},
		{"double slash", "recordings//a.tar", true},
		{"trailing slash", "recordings/", true},
		{"backslash", "recordings\\a.tar", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
