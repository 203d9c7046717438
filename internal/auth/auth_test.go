package auth

import (
	"testing"

	"github.com/danmuck/legosorter/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	token, ok := BearerToken("Bearer s3cret")
	require.True(t, ok)
	require.Equal(t, "s3cret", token)

	token, ok = BearerToken("  bearer   padded ")
	require.True(t, ok)
	require.Equal(t, "padded", token)

	for _, bad := range []string{"", "Bearer", "Bearer   ", "Basic abc", "s3cret"} {
		_, ok := BearerToken(bad)
		require.False(t, ok, bad)
	}
}
