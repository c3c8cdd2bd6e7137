package users

import (
	"bytes"
	"testing"

	"github.com/andrebq/secrets/auth"
	"github.com/stretchr/testify/require"
)

func TestReadPasswordKeepsSpaces(t *testing.T) {
	for input, expected := range map[string]string{
		"pw1\n":       "pw1",
		"  pw1  \n":   "  pw1  ",
		" pw1 \r\n":   " pw1 ",
		"no-newline":  "no-newline",
		"first\nnext": "first",
	} {
		got, err := readPassword(bytes.NewBufferString(input))
		require.NoError(t, err, input)
		require.Equal(t, auth.PlainText(expected), got, input)
	}

	for _, input := range []string{"", "\n", "\r\n"} {
		_, err := readPassword(bytes.NewBufferString(input))
		require.Error(t, err, input)
	}
}
