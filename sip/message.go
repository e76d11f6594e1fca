package sip

import (
	"bytes"
	"sync"
)

// Message owns one SIP message's raw bytes and the header records carved
// out of them. Parsed trees reference the buffer; a message must outlive
// every value slice handed out from it.
//
// Deleting a header tombstones the record: it stays linked so outstanding
// slices remain valid, it is skipped by searches and its bytes no longer
// count toward Len.
type Message struct {
	mu sync.Mutex

	id  MessageID
	buf []byte

	startRaw  *Header
	startLine *StartLine

	hdrs []*Header
	body []byte

	// live byte count: start-line + non-deleted headers + body
	size int

	modifiable bool
}

// NewMessage takes ownership of a copy of data. SetupHeaderPointers must
// run before any header access.
func NewMessage(data []byte) *Message {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Message{
		id:         NextMessageID(),
		buf:        buf,
		modifiable: true,
	}
}

// ID returns the message correlation ID.
func (m *Message) ID() MessageID { return m.id }

// SetupHeaderPointers carves the start-line and header boundaries out of
// the raw buffer and parses the start-line. Folded continuation lines are
// kept inside their header's byte range. The body begins after the blank
// line.
func (m *Message) SetupHeaderPointers() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.buf
	lineEnd := func(from int) int {
		i := bytes.IndexByte(buf[from:], '\n')
		if i < 0 {
			return -1
		}
		return from + i + 1
	}

	end := lineEnd(0)
	if end < 0 {
		return ErrBadProtocol
	}
	m.startRaw = &Header{msg: m, buf: buf[:end], start: 0, end: end}
	sl, err := parseFirstLine(m.startRaw)
	if err != nil {
		return err
	}
	m.startLine = sl
	m.size = end

	pos := end
	for pos < len(buf) {
		next := lineEnd(pos)
		if next < 0 {
			return ErrBadProtocol
		}
		line := buf[pos:next]
		if len(bytes.TrimRight(line, crlf)) == 0 {
			// blank line: headers end, body begins
			pos = next
			m.body = buf[pos:]
			m.size += len(m.body)
			return nil
		}
		// collect folded continuation lines
		for next < len(buf) && (buf[next] == ' ' || buf[next] == '\t') {
			cont := lineEnd(next)
			if cont < 0 {
				return ErrBadProtocol
			}
			next = cont
		}
		h := newHeaderRecord(m, buf[pos:next])
		m.hdrs = append(m.hdrs, h)
		m.size += h.Len()
		pos = next
	}
	return nil
}

// Len returns the live byte count of the message, deletions subtracted.
func (m *Message) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Body returns the message body.
func (m *Message) Body() []byte { return m.body }

// IsRequest reports whether the start-line carries a request.
func (m *Message) IsRequest() (bool, error) {
	if m == nil || m.startLine == nil {
		return false, ErrInvalidArg
	}
	return m.startLine.IsRequest, nil
}

// IsResponse reports whether the start-line carries a response.
func (m *Message) IsResponse() (bool, error) {
	req, err := m.IsRequest()
	return !req && err == nil, err
}

// RequestMethod returns the request method; ErrInvalidArg on a response.
func (m *Message) RequestMethod() (RequestMethod, error) {
	if m == nil || m.startLine == nil || !m.startLine.IsRequest {
		return "", ErrInvalidArg
	}
	return m.startLine.Method, nil
}

// RequestURIBytes returns the raw Request-URI; ErrInvalidArg on a response.
func (m *Message) RequestURIBytes() ([]byte, error) {
	if m == nil || m.startLine == nil || !m.startLine.IsRequest {
		return nil, ErrInvalidArg
	}
	return m.startLine.RequestURI, nil
}

// RequestURI returns the parsed Request-URI; ErrInvalidArg on a response.
func (m *Message) RequestURI() (*URI, error) {
	if m == nil || m.startLine == nil || !m.startLine.IsRequest {
		return nil, ErrInvalidArg
	}
	return m.startLine.URI, nil
}

// ResponseCode returns the status code; ErrInvalidArg on a request.
func (m *Message) ResponseCode() (int, error) {
	if m == nil || m.startLine == nil || m.startLine.IsRequest {
		return 0, ErrInvalidArg
	}
	return m.startLine.Code, nil
}

// ResponsePhrase returns the reason phrase; ErrInvalidArg on a request.
func (m *Message) ResponsePhrase() ([]byte, error) {
	if m == nil || m.startLine == nil || m.startLine.IsRequest {
		return nil, ErrInvalidArg
	}
	return m.startLine.Phrase, nil
}

// SIPVersion returns the protocol version token of the start-line.
func (m *Message) SIPVersion() ([]byte, error) {
	if m == nil || m.startLine == nil {
		return nil, ErrInvalidArg
	}
	return m.startLine.Version, nil
}

// GetHeader returns the first header after prev whose name matches, long or
// compact form, case-insensitively. A nil prev starts from the head; an
// empty name matches any non-deleted header.
func (m *Message) GetHeader(name string, prev *Header) *Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchHeader(name, prev)
}

// searchHeader is GetHeader without the lock, for callers holding it.
func (m *Message) searchHeader(name string, prev *Header) *Header {
	start := 0
	if prev != nil {
		for i, h := range m.hdrs {
			if h == prev {
				start = i + 1
				break
			}
		}
		if start == 0 {
			// prev not found: it is not ours
			return nil
		}
	}
	for _, h := range m.hdrs[start:] {
		if h.state == HdrDeleted {
			continue
		}
		if name == "" || headerNameMatches(h, name) {
			return h
		}
	}
	return nil
}

// Headers returns all live header records in order.
func (m *Message) Headers() []*Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Header, 0, len(m.hdrs))
	for _, h := range m.hdrs {
		if h.state == HdrDeleted {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Seal latches the message against further mutation; called when the
// message is handed to the transport. There is no way back.
func (m *Message) Seal() {
	m.mu.Lock()
	m.modifiable = false
	m.mu.Unlock()
}

// Modifiable reports whether the message still accepts mutation.
func (m *Message) Modifiable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modifiable
}

// Bytes reassembles the message wire form: start-line, live headers, blank
// line, body. Deleted headers are omitted.
func (m *Message) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out bytes.Buffer
	if m.startRaw != nil {
		out.Write(m.startRaw.buf)
	}
	for _, h := range m.hdrs {
		switch h.state {
		case HdrDeleted:
		case HdrDeletedVal:
			// re-emit only the live values
			out.Write(h.name)
			out.WriteString(": ")
			first := true
			for v := h.parsed.value; v != nil; v = v.next {
				if v.state == ValueDeleted {
					continue
				}
				if !first {
					out.WriteString(", ")
				}
				out.Write(bytes.TrimSpace(h.buf[v.start:v.end]))
				first = false
			}
			out.WriteString(crlf)
		default:
			out.Write(h.buf)
		}
	}
	out.WriteString(crlf)
	out.Write(m.body)
	return out.Bytes()
}

// String renders the reassembled message.
func (m *Message) String() string { return string(m.Bytes()) }
