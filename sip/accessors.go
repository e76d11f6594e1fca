package sip

// Typed accessors over common headers. The pattern throughout: a missing
// header yields an empty result (nil, or -1 for the integer accessors that
// document it) with a nil error, a malformed one yields
// ErrBadProtocol, so callers can tell absence from damage.

// HeaderValue returns the first value of the named header, nil when the
// header is absent or legally empty.
func (m *Message) HeaderValue(name string) (*Value, error) {
	if m == nil {
		return nil, ErrInvalidArg
	}
	h := m.GetHeader(name, nil)
	if h == nil {
		return nil, nil
	}
	return h.Value()
}

// checked returns the value with ErrBadProtocol surfaced for bad values.
func checked(v *Value, err error) (*Value, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if v.Bad() {
		return nil, ErrBadProtocol
	}
	return v, nil
}

func (m *Message) strValue(name string) ([]byte, error) {
	v, err := checked(m.HeaderValue(name))
	if v == nil || err != nil {
		return nil, err
	}
	return v.Str, nil
}

func (m *Message) intValue(name string) (int, error) {
	v, err := checked(m.HeaderValue(name))
	if v == nil || err != nil {
		return -1, err
	}
	return v.Int, nil
}

/* From / To / Contact */

// FromURIStr returns the URI bytes of the From header.
func (m *Message) FromURIStr() ([]byte, error) {
	v, err := checked(m.HeaderValue("From"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.URI, nil
}

// FromDisplay returns the display name of the From header, nil if none.
func (m *Message) FromDisplay() ([]byte, error) {
	v, err := checked(m.HeaderValue("From"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.Display, nil
}

// FromTag returns the tag parameter of the From header.
func (m *Message) FromTag() ([]byte, error) {
	v, err := checked(m.HeaderValue("From"))
	if v == nil || err != nil {
		return nil, err
	}
	tag, _ := v.Param("tag")
	return tag, nil
}

// ToURIStr returns the URI bytes of the To header.
func (m *Message) ToURIStr() ([]byte, error) {
	v, err := checked(m.HeaderValue("To"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.URI, nil
}

// ToDisplay returns the display name of the To header, nil if none.
func (m *Message) ToDisplay() ([]byte, error) {
	v, err := checked(m.HeaderValue("To"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.Display, nil
}

// ToTag returns the tag parameter of the To header.
func (m *Message) ToTag() ([]byte, error) {
	v, err := checked(m.HeaderValue("To"))
	if v == nil || err != nil {
		return nil, err
	}
	tag, _ := v.Param("tag")
	return tag, nil
}

// ContactURIStr returns the URI bytes of the first Contact value.
func (m *Message) ContactURIStr() ([]byte, error) {
	v, err := checked(m.HeaderValue("Contact"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.URI, nil
}

// HeaderTag extracts the tag parameter from a standalone From/To style
// header, as stored on dialogs.
func HeaderTag(h *Header) ([]byte, error) {
	if h == nil {
		return nil, ErrInvalidArg
	}
	v, err := checked(h.Value())
	if v == nil || err != nil {
		return nil, err
	}
	tag, _ := v.Param("tag")
	return tag, nil
}

/* Call-ID / CSeq / RAck */

// CallID returns the Call-ID bytes.
func (m *Message) CallID() ([]byte, error) {
	return m.strValue("Call-ID")
}

// CSeqNum returns the CSeq sequence number, -1 when absent.
func (m *Message) CSeqNum() (int, error) {
	v, err := checked(m.HeaderValue("CSeq"))
	if v == nil || err != nil {
		return -1, err
	}
	return v.CSeqNum, nil
}

// CSeqMethod returns the CSeq method.
func (m *Message) CSeqMethod() (RequestMethod, error) {
	v, err := checked(m.HeaderValue("CSeq"))
	if v == nil || err != nil {
		return "", err
	}
	return v.Method, nil
}

// RAckRespNum returns the RAck response number, -1 when absent.
func (m *Message) RAckRespNum() (int, error) {
	v, err := checked(m.HeaderValue("RAck"))
	if v == nil || err != nil {
		return -1, err
	}
	return v.RespNum, nil
}

// RAckCSeqNum returns the RAck CSeq number, -1 when absent.
func (m *Message) RAckCSeqNum() (int, error) {
	v, err := checked(m.HeaderValue("RAck"))
	if v == nil || err != nil {
		return -1, err
	}
	return v.CSeqNum, nil
}

// RAckMethod returns the RAck method.
func (m *Message) RAckMethod() (RequestMethod, error) {
	v, err := checked(m.HeaderValue("RAck"))
	if v == nil || err != nil {
		return "", err
	}
	return v.Method, nil
}

// RSeq returns the RSeq response number, -1 when absent.
func (m *Message) RSeq() (int, error) {
	return m.intValue("RSeq")
}

/* Via */

// ViaSentByHost returns the sent-by host of the topmost Via.
func (m *Message) ViaSentByHost() ([]byte, error) {
	v, err := checked(m.HeaderValue("Via"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.ViaHost, nil
}

// ViaSentByPort returns the sent-by port of the topmost Via, 0 if absent.
func (m *Message) ViaSentByPort() (int, error) {
	v, err := checked(m.HeaderValue("Via"))
	if v == nil || err != nil {
		return 0, err
	}
	return v.ViaPort, nil
}

// BranchID returns the branch parameter of the topmost Via.
func (m *Message) BranchID() ([]byte, error) {
	v, err := checked(m.HeaderValue("Via"))
	if v == nil || err != nil {
		return nil, err
	}
	branch, _ := v.Param("branch")
	return branch, nil
}

/* integer headers */

// Expires returns the Expires value, -1 when absent.
func (m *Message) Expires() (int, error) { return m.intValue("Expires") }

// MinExpires returns the Min-Expires value, -1 when absent.
func (m *Message) MinExpires() (int, error) { return m.intValue("Min-Expires") }

// MaxForwards returns the Max-Forwards value, -1 when absent.
func (m *Message) MaxForwards() (int, error) { return m.intValue("Max-Forwards") }

// ContentLength returns the Content-Length value, -1 when absent.
func (m *Message) ContentLength() (int, error) { return m.intValue("Content-Length") }

/* token and text headers */

// Event returns the event package token of the Event header.
func (m *Message) Event() ([]byte, error) { return m.strValue("Event") }

// SubscriptionState returns the Subscription-State token.
func (m *Message) SubscriptionState() ([]byte, error) {
	return m.strValue("Subscription-State")
}

// ContentType returns the media type of the Content-Type header.
func (m *Message) ContentType() ([]byte, error) { return m.strValue("Content-Type") }

// ContentSubType returns the media subtype of the Content-Type header.
func (m *Message) ContentSubType() ([]byte, error) {
	v, err := checked(m.HeaderValue("Content-Type"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.Str2, nil
}

// Subject returns the Subject text.
func (m *Message) Subject() ([]byte, error) { return m.strValue("Subject") }

// Organization returns the Organization text.
func (m *Message) Organization() ([]byte, error) { return m.strValue("Organization") }

// Server returns the Server text.
func (m *Message) Server() ([]byte, error) { return m.strValue("Server") }

// UserAgent returns the User-Agent text.
func (m *Message) UserAgent() ([]byte, error) { return m.strValue("User-Agent") }

// MIMEVersion returns the MIME-Version text.
func (m *Message) MIMEVersion() ([]byte, error) { return m.strValue("MIME-Version") }

// Priority returns the Priority token.
func (m *Message) Priority() ([]byte, error) { return m.strValue("Priority") }

// ContentDisposition returns the Content-Disposition token.
func (m *Message) ContentDisposition() ([]byte, error) {
	return m.strValue("Content-Disposition")
}

/* Retry-After / Timestamp / Date */

// RetryAfterTime returns the delta-seconds of Retry-After, -1 when absent.
func (m *Message) RetryAfterTime() (int, error) { return m.intValue("Retry-After") }

// RetryAfterComment returns the parenthesised comment of Retry-After.
func (m *Message) RetryAfterComment() ([]byte, error) {
	return m.strValue("Retry-After")
}

// TimestampValue returns the timestamp string.
func (m *Message) TimestampValue() ([]byte, error) { return m.strValue("Timestamp") }

// TimestampDelay returns the delay string, nil if none.
func (m *Message) TimestampDelay() ([]byte, error) {
	v, err := checked(m.HeaderValue("Timestamp"))
	if v == nil || err != nil {
		return nil, err
	}
	return v.Str2, nil
}

// Date returns the parsed Date header value for field access.
func (m *Message) Date() (*Value, error) {
	return checked(m.HeaderValue("Date"))
}
