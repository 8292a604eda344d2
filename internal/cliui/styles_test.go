package cliui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithoutColorRendersPlainText(t *testing.T) {
	s := New(false)
	assert.Equal(t, "hello", s.Title.Render("hello"))
	assert.Equal(t, "hello", s.Success.Render("hello"))
}

func TestNewWithColorAppliesStyling(t *testing.T) {
	s := New(true)
	rendered := s.Title.Render("hello")
	assert.Contains(t, rendered, "hello")
}

func TestTableAlignsColumnsAndPadsHeader(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"ID", "NAME"}, [][]string{
		{"1", "alice"},
		{"22", "bob"},
	})
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID "))
	assert.True(t, strings.HasPrefix(lines[1], "--  -----"))
}

func TestTableHandlesEmptyRows(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"ID"}, nil)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestColorEnabledFalseForNonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, ColorEnabled(&buf))
}
