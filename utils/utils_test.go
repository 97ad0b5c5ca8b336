package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashString(t *testing.T) {
	require.Equal(t, HashString("hola mundo"), HashString("hola mundo"))
	require.NotEqual(t, HashString("hola mundo"), HashString("hola mundo!"))
}

func TestReadSet(t *testing.T) {
	set, err := ReadSet(strings.NewReader("# comment\nDe\n\n  la \nque\n"))
	require.NoError(t, err)
	require.Len(t, set, 3)
	for _, w := range []string{"de", "la", "que"} {
		_, ok := set[w]
		require.True(t, ok, w)
	}
}

func TestRecoverWithError(t *testing.T) {
	run := func() (err error) {
		defer RecoverWithError(&err)
		panic("boom")
	}
	err := run()
	require.EqualError(t, err, "got panic: boom")
}
