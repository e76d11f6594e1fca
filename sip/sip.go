// Package sip implements RFC 3261 message parsing on top of a zero-copy
// header model. A Message owns the raw wire bytes; headers are carved as
// byte ranges and parsed lazily into value trees whose fields are subslices
// of the original buffer.
package sip

import (
	"errors"

	uuid "github.com/satori/go.uuid"
)

const (
	// RFC3261BranchMagicCookie starts every RFC 3261 compliant branch ID.
	RFC3261BranchMagicCookie = "z9hG4bK"

	// SIPVersion is the protocol version produced on output.
	SIPVersion = "SIP/2.0"

	crlf = "\r\n"
)

// DefaultT1Millis is the base retransmission interval in milliseconds,
// RFC 3261 17.1.1.1.
const DefaultT1Millis = 500

var (
	// ErrInvalidArg is returned on nil or wrong-kind handles, e.g. asking a
	// response for its request method.
	ErrInvalidArg = errors.New("invalid argument")

	// ErrBadProtocol is returned on parse-level inconsistencies and by
	// accessors whose underlying value was marked bad, so callers can tell
	// "header absent" from "header malformed".
	ErrBadProtocol = errors.New("bad protocol")

	// ErrPermission is returned on attempts to mutate a message that has
	// been handed to the transport.
	ErrPermission = errors.New("message no longer modifiable")
)

// RequestMethod is the method name of a SIP request.
type RequestMethod string

func (r RequestMethod) String() string { return string(r) }

const (
	INVITE    RequestMethod = "INVITE"
	ACK       RequestMethod = "ACK"
	OPTIONS   RequestMethod = "OPTIONS"
	BYE       RequestMethod = "BYE"
	CANCEL    RequestMethod = "CANCEL"
	REGISTER  RequestMethod = "REGISTER"
	REFER     RequestMethod = "REFER"
	SUBSCRIBE RequestMethod = "SUBSCRIBE"
	NOTIFY    RequestMethod = "NOTIFY"
	PRACK     RequestMethod = "PRACK"
	INFO      RequestMethod = "INFO"
	UPDATE    RequestMethod = "UPDATE"
	MESSAGE   RequestMethod = "MESSAGE"
	PUBLISH   RequestMethod = "PUBLISH"
)

// requestMethods is consulted by the start-line, CSeq, RAck and Allow
// grammars. Unknown tokens fail those grammars.
var requestMethods = []RequestMethod{
	INVITE, ACK, OPTIONS, BYE, CANCEL, REGISTER, REFER,
	SUBSCRIBE, NOTIFY, PRACK, INFO, UPDATE, MESSAGE, PUBLISH,
}

// matchMethod resolves a method token against the known method table.
func matchMethod(tok []byte) (RequestMethod, bool) {
	for _, m := range requestMethods {
		if len(tok) == len(m) && string(tok) == string(m) {
			return m, true
		}
	}
	return "", false
}

// StatusCode is a response status code, 1xx-6xx.
type StatusCode int

// MessageID correlates a message across log lines.
type MessageID string

// NextMessageID returns a random unique message ID.
func NextMessageID() MessageID {
	return MessageID(uuid.Must(uuid.NewV4()).String())
}
