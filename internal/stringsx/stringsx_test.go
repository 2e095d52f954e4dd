package stringsx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_Table(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mixed case", "  HeLLo  ", "hello"},
		{"already clean", "admin", "admin"},
		{"tabs and newlines", "\tALUNO\n", "aluno"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestIsEmpty(t *testing.T) {
	require.True(t, IsEmpty("   \n\t  "))
	require.True(t, IsEmpty(""))
	require.False(t, IsEmpty(" x "))
}

func TestTrimPtr(t *testing.T) {
	require.Nil(t, TrimPtr(nil))

	s := "  title "
	got := TrimPtr(&s)
	require.NotNil(t, got)
	require.Equal(t, "title", *got)
	require.Equal(t, "  title ", s)
}
