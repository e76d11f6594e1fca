package sip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, raw string) *Value {
	t.Helper()
	h := NewHeaderFromBytes([]byte(raw))
	require.NotNil(t, h.entry, "unregistered header %q", raw)
	v, err := h.Value()
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

func TestParseVia(t *testing.T) {
	v := parseOne(t, "Via: SIP/2.0/UDP pc33.atlanta.example.com;branch=z9hG4bK776\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "SIP", string(v.ViaProtocolName))
	assert.Equal(t, "2.0", string(v.ViaProtocolVersion))
	assert.Equal(t, "UDP", string(v.ViaTransport))
	assert.Equal(t, "pc33.atlanta.example.com", string(v.ViaHost))
	assert.Equal(t, 0, v.ViaPort)
	branch, ok := v.Param("branch")
	require.True(t, ok)
	assert.Equal(t, "z9hG4bK776", string(branch))
}

func TestParseViaWithPort(t *testing.T) {
	v := parseOne(t, "Via: SIP/2.0/TCP host.example.com:5061;branch=z9hG4bK87a\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "host.example.com", string(v.ViaHost))
	assert.Equal(t, 5061, v.ViaPort)
}

func TestParseViaIPv6(t *testing.T) {
	v := parseOne(t, "Via: SIP/2.0/UDP [::1]:5060;branch=z9hG4bKa7\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "[::1]", string(v.ViaHost))
	assert.Equal(t, 5060, v.ViaPort)
}

func TestParseViaNoParams(t *testing.T) {
	v := parseOne(t, "Via: SIP/2.0/UDP h1\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "h1", string(v.ViaHost))
	assert.Empty(t, v.Params)
}

func TestParseViaBadValueTolerance(t *testing.T) {
	// the garbage first value is marked bad, the second still parses
	h := NewHeaderFromBytes([]byte("Via: garbage-value, SIP/2.0/UDP h2;branch=z9hG4bKx\r\n"))
	v, err := h.Value()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.Bad())

	v2 := v.Next()
	require.NotNil(t, v2)
	assert.False(t, v2.Bad())
	assert.Equal(t, "h2", string(v2.ViaHost))
}

func TestParseFrom(t *testing.T) {
	v := parseOne(t, "From: Alice <sip:alice@atlanta.example.com>;tag=88sja8x\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "Alice", string(v.Display))
	assert.Equal(t, "sip:alice@atlanta.example.com", string(v.URI))
	tag, ok := v.Param("tag")
	require.True(t, ok)
	assert.Equal(t, "88sja8x", string(tag))
	require.NotNil(t, v.ParsedURI)
	assert.Equal(t, "alice", v.ParsedURI.User)
}

func TestParseFromQuotedDisplay(t *testing.T) {
	v := parseOne(t, "From: \"A. G. Bell\" <sip:agb@bell-telephone.com>;tag=a48s\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "A. G. Bell", string(v.Display))
	assert.Equal(t, "sip:agb@bell-telephone.com", string(v.URI))
}

func TestParseToBareURI(t *testing.T) {
	v := parseOne(t, "To: sip:bob@biloxi.example.com\r\n")
	assert.False(t, v.Bad())
	assert.Nil(t, v.Display)
	assert.Equal(t, "sip:bob@biloxi.example.com", string(v.URI))
}

func TestParseRecordRouteMultiValue(t *testing.T) {
	h := NewHeaderFromBytes([]byte("Record-Route: <sip:p1@r1;lr>, <sip:p2@r2;lr>\r\n"))
	v, err := h.Value()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "sip:p1@r1;lr", string(v.URI))
	require.NotNil(t, v.ParsedURI)
	assert.True(t, v.ParsedURI.Params.Has("lr"))
	assert.Equal(t, "<sip:p1@r1;lr>", string(v.Raw()))

	v2 := v.Next()
	require.NotNil(t, v2)
	assert.Equal(t, "sip:p2@r2;lr", string(v2.URI))
}

func TestParseCSeq(t *testing.T) {
	v := parseOne(t, "CSeq: 4711 INVITE\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, 4711, v.CSeqNum)
	assert.Equal(t, INVITE, v.Method)

	v = parseOne(t, "CSeq: 1 BLORB\r\n")
	assert.True(t, v.Bad())
}

func TestParseRAck(t *testing.T) {
	v := parseOne(t, "RAck: 776656 1 INVITE\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, 776656, v.RespNum)
	assert.Equal(t, 1, v.CSeqNum)
	assert.Equal(t, INVITE, v.Method)

	// zero response number is bad
	v = parseOne(t, "RAck: 0 1 INVITE\r\n")
	assert.True(t, v.Bad())
}

func TestParseRSeqZeroBad(t *testing.T) {
	v := parseOne(t, "RSeq: 988789\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, 988789, v.Int)

	v = parseOne(t, "RSeq: 0\r\n")
	assert.True(t, v.Bad())
}

func TestParseAllow(t *testing.T) {
	h := NewHeaderFromBytes([]byte("Allow: INVITE, ACK, OPTIONS, CANCEL, BYE\r\n"))
	v, err := h.Value()
	require.NoError(t, err)
	want := []RequestMethod{INVITE, ACK, OPTIONS, CANCEL, BYE}
	for i, m := range want {
		require.NotNil(t, v, "value %d missing", i)
		assert.Equal(t, m, v.Method)
		assert.False(t, v.Bad())
		v = v.Next()
	}
	assert.Nil(t, v)
}

func TestParseAllowUnknownToken(t *testing.T) {
	h := NewHeaderFromBytes([]byte("Allow: INVITE, SNARF\r\n"))
	v, err := h.Value()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, v.Bad())
	v2 := v.Next()
	require.NotNil(t, v2)
	assert.True(t, v2.Bad())
}

func TestParseWarningCodeEdges(t *testing.T) {
	cases := []struct {
		raw string
		bad bool
	}{
		{"Warning: 099 isi.edu \"t\"\r\n", true},
		{"Warning: 100 isi.edu \"t\"\r\n", false},
		{"Warning: 999 isi.edu \"t\"\r\n", false},
		{"Warning: 1000 isi.edu \"t\"\r\n", true},
	}
	for _, tc := range cases {
		v := parseOne(t, tc.raw)
		assert.Equal(t, tc.bad, v.Bad(), tc.raw)
	}
}

func TestParseWarningFields(t *testing.T) {
	v := parseOne(t, "Warning: 307 isi.edu \"Session parameter 'foo' rejected\"\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, 307, v.WarnCode)
	assert.Equal(t, "isi.edu", string(v.WarnAgent))
	assert.Equal(t, "Session parameter 'foo' rejected", string(v.WarnText))
}

func TestParseDate(t *testing.T) {
	v := parseOne(t, "Date: Sat, 13 Nov 2010 23:29:00 GMT\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "Sat", string(v.DateWeekday))
	assert.Equal(t, 13, v.DateDay)
	assert.Equal(t, "Nov", string(v.DateMonth))
	assert.Equal(t, 2010, v.DateYear)
	assert.Equal(t, "23:29:00", string(v.DateTime))
	assert.Equal(t, "GMT", string(v.DateTZ))
}

func TestParseRetryAfter(t *testing.T) {
	v := parseOne(t, "Retry-After: 18000;duration=3600\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, 18000, v.Int)
	dur, ok := v.Param("duration")
	require.True(t, ok)
	assert.Equal(t, "3600", string(dur))

	v = parseOne(t, "Retry-After: 120 (I'm in a meeting)\r\n")
	assert.Equal(t, 120, v.Int)
	assert.Equal(t, "I'm in a meeting", string(v.Str))
}

func TestParseTimestamp(t *testing.T) {
	v := parseOne(t, "Timestamp: 54.21 0.35\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "54.21", string(v.Str))
	assert.Equal(t, "0.35", string(v.Str2))

	v = parseOne(t, "Timestamp: 54.21\r\n")
	assert.Equal(t, "54.21", string(v.Str))
	assert.Empty(t, v.Str2)
}

func TestParseAcceptPair(t *testing.T) {
	h := NewHeaderFromBytes([]byte("Accept: application/sdp;level=1, application/x-private\r\n"))
	v, err := h.Value()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "application", string(v.Str))
	assert.Equal(t, "sdp", string(v.Str2))
	level, ok := v.Param("level")
	require.True(t, ok)
	assert.Equal(t, "1", string(level))

	v2 := v.Next()
	require.NotNil(t, v2)
	assert.Equal(t, "application", string(v2.Str))
	assert.Equal(t, "x-private", string(v2.Str2))
}

func TestParseEventWithID(t *testing.T) {
	v := parseOne(t, "Event: presence;id=1234\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "presence", string(v.Str))
	id, ok := v.Param("id")
	require.True(t, ok)
	assert.Equal(t, "1234", string(id))
}

func TestParseAuthChallenge(t *testing.T) {
	v := parseOne(t, "WWW-Authenticate: Digest realm=\"atlanta.example.com\", qop=\"auth\", nonce=\"f84f1cec41e6cbe5aea9c8e88d359\", opaque=\"\", stale=FALSE, algorithm=MD5\r\n")
	assert.False(t, v.Bad())
	assert.Equal(t, "Digest", string(v.AuthScheme))

	realm, ok := v.Param("realm")
	require.True(t, ok)
	assert.Equal(t, "atlanta.example.com", string(realm))

	alg, ok := v.Param("algorithm")
	require.True(t, ok)
	assert.Equal(t, "MD5", string(alg))

	stale, ok := v.Param("stale")
	require.True(t, ok)
	assert.Equal(t, "FALSE", string(stale))
}

func TestParamQuoteStripping(t *testing.T) {
	v := parseOne(t, "Contact: <sip:caller@host>;description=\"hi there\"\r\n")
	d, ok := v.Param("description")
	require.True(t, ok)
	assert.Equal(t, "hi there", string(d))
}

func TestBareSemicolonIsBad(t *testing.T) {
	v := parseOne(t, "Contact: <sip:caller@host>;\r\n")
	assert.True(t, v.Bad())
}
