package scans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRefValidate(t *testing.T) {
	tests := []struct {
		name    string
		ref     ImageRef
		wantErr bool
	}{
		{"plain", "alpine:3.19", false},
		{"with registry", "ghcr.io/acme/api:v1.2.3", false},
		{"digest", "repo/app@sha256:abc", false},
		{"empty", "", true},
		{"space", "repo/a b:1", true},
		{"newline", "repo/a\n:1", true},
		{"tab", "repo/a\t:1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestScanRequestValidate(t *testing.T) {
	t.Run("empty image list rejected", func(t *testing.T) {
		err := ScanRequest{}.Validate()
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("bad image rejected", func(t *testing.T) {
		err := ScanRequest{Images: []ImageRef{"repo/a:1", "has space"}}.Validate()
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("valid", func(t *testing.T) {
		err := ScanRequest{Images: []ImageRef{"repo/a:1"}}.Validate()
		require.NoError(t, err)
	})
}

func TestDedupedImagesPreservesOrder(t *testing.T) {
	req := ScanRequest{Images: []ImageRef{"c:1", "a:1", "c:1", "b:1", "a:1"}}
	assert.Equal(t, []ImageRef{"c:1", "a:1", "b:1"}, req.DedupedImages())
}

func TestValidateMetadata(t *testing.T) {
	require.NoError(t, ValidateMetadata(nil))
	require.NoError(t, ValidateMetadata(map[string]any{
		"branch": "main", "attempt": 2, "ratio": 0.5, "ci": true,
	}))

	err := ValidateMetadata(map[string]any{"nested": map[string]any{"x": 1}})
	require.ErrorIs(t, err, ErrInvalidRequest)

	err = ValidateMetadata(map[string]any{"list": []string{"a"}})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSeverityCountsAdd(t *testing.T) {
	a := SeverityCounts{Critical: 1, High: 2, Low: 1, Total: 4}
	a.Add(SeverityCounts{High: 1, Medium: 3, Total: 4})
	assert.Equal(t, SeverityCounts{Critical: 1, High: 3, Medium: 3, Low: 1, Total: 8}, a)
}
