package importer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("header and rows", func(t *testing.T) {
		table, err := Parse([]byte("Prénom,Email\nJean,jean@x.com\nMarie,marie@x.com\n"))
		require.NoError(t, err)

		assert.Equal(t, []string{"Prénom", "Email"}, table.Headers)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "Jean", table.Rows[0]["Prénom"])
		assert.Equal(t, "marie@x.com", table.Rows[1]["Email"])
	})

	t.Run("skips fully empty lines", func(t *testing.T) {
		table, err := Parse([]byte("Name,Email\n\nJean,jean@x.com\n,,\nMarie,marie@x.com\n"))
		require.NoError(t, err)
		assert.Len(t, table.Rows, 2)
	})

	t.Run("short rows padded with empty strings", func(t *testing.T) {
		table, err := Parse([]byte("Name,Email,Phone\nJean,jean@x.com\n"))
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "", table.Rows[0]["Phone"])
	})

	t.Run("row wider than header fails with line info", func(t *testing.T) {
		_, err := Parse([]byte("Name,Email\nJean,jean@x.com,extra\n"))

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 2, parseErr.Line)
	})

	t.Run("empty file fails", func(t *testing.T) {
		_, err := Parse([]byte("   \n  \n"))
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("header only is valid with zero rows", func(t *testing.T) {
		table, err := Parse([]byte("Name,Email\n"))
		require.NoError(t, err)
		assert.Empty(t, table.Rows)
	})

	t.Run("BOM stripped from first header", func(t *testing.T) {
		table, err := Parse([]byte("\uFEFFName,Email\nJean,jean@x.com\n"))
		require.NoError(t, err)
		assert.Equal(t, "Name", table.Headers[0])
	})

	t.Run("invalid UTF-8 sanitized not fatal", func(t *testing.T) {
		table, err := Parse([]byte("Name,Email\nJos\x80,jose@x.com\n"))
		require.NoError(t, err)
		assert.Equal(t, "Jos�", table.Rows[0]["Name"])
	})

	t.Run("pure transform leaves input untouched", func(t *testing.T) {
		data := []byte("Name\nJean\n")
		orig := append([]byte(nil), data...)
		_, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, orig, data)
	})
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  Jean  ", "Jean"},
		{"strips excel text wrapper", `="00123"`, "00123"},
		{"plain value unchanged", "jean@x.com", "jean@x.com"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanCell(tt.input))
		})
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}
