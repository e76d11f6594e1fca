package sip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader(t *testing.T, raw string) *Header {
	t.Helper()
	h := NewHeaderFromBytes([]byte(raw))
	require.NotNil(t, h)
	return h
}

func TestCursorAtoi(t *testing.T) {
	h := testHeader(t, "X: 123 rest\r\n")
	h.gotoValues()
	n, ok := h.atoi()
	require.True(t, ok)
	assert.Equal(t, 123, n)

	h = testHeader(t, "X: abc\r\n")
	h.gotoValues()
	_, ok = h.atoi()
	assert.False(t, ok)

	// leading whitespace is skipped, the first non-digit stops the scan
	h = testHeader(t, "X:   42;x\r\n")
	h.gotoValues()
	n, ok = h.atoi()
	require.True(t, ok)
	assert.Equal(t, 42, n)
	assert.Equal(t, byte(';'), h.peek())
}

func TestCursorFindTokenCommaBoundary(t *testing.T) {
	h := testHeader(t, "X: abc, def\r\n")
	h.gotoValues()
	// a comma before the token is a value boundary
	assert.False(t, h.findToken(';'))

	h.rewind()
	h.gotoValues()
	assert.True(t, h.findToken(','))
	h.skipWhiteSpace()
	assert.Equal(t, byte('d'), h.peek())
}

func TestCursorFindSeparatorEscape(t *testing.T) {
	h := testHeader(t, `X: a\;b;c` + "\r\n")
	h.gotoValues()
	require.True(t, h.findSeparator(';', 0, 0))
	// the escaped semicolon is passed over
	assert.Equal(t, byte(';'), h.peek())
	h.cur++
	assert.Equal(t, byte('c'), h.peek())
}

func TestCursorGotoNextValueQuoted(t *testing.T) {
	h := testHeader(t, `X: "a,b", c` + "\r\n")
	h.gotoValues()
	require.True(t, h.gotoNextValue())
	// the comma inside quotes is opaque; cursor rests just before the
	// separating comma
	h.cur++
	assert.Equal(t, byte(','), h.peek())
}

func TestCursorReverseSkipWhiteSpace(t *testing.T) {
	h := testHeader(t, "X: ab   \r\n")
	h.cur = h.end - 1
	require.True(t, h.reverseSkipWhiteSpace())
	assert.Equal(t, byte('b'), h.peek())
}

func TestHeaderIsEmpty(t *testing.T) {
	assert.True(t, testHeader(t, "Subject:\r\n").isEmpty())
	assert.True(t, testHeader(t, "Subject:   \r\n").isEmpty())
	assert.False(t, testHeader(t, "Subject: x\r\n").isEmpty())
}
