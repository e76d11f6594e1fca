package sip

// parseFn materializes a header's parse tree. The cursor is expected at the
// record start on entry.
type parseFn func(h *Header) (*ParsedHeader, error)

// headerEntry binds a header name (and its compact form, where RFC 3261
// defines one) to its grammar. emptyOK marks headers that may legally carry
// no value after the colon.
type headerEntry struct {
	long    string
	compact string
	emptyOK bool
	parse   parseFn
}

var headerTable = []headerEntry{
	{long: "Accept", emptyOK: true, parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, '/') }},
	{long: "Accept-Encoding", emptyOK: true, parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Accept-Language", emptyOK: true, parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Alert-Info", parse: func(h *Header) (*ParsedHeader, error) { return parseP3(h, false, false) }},
	{long: "Allow", emptyOK: true, parse: parseAllow},
	{long: "Allow-Events", compact: "u", emptyOK: true, parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Authorization", parse: func(h *Header) (*ParsedHeader, error) { return parseP5(h, true) }},
	{long: "Call-ID", compact: "i", parse: parseP4},
	{long: "Call-Info", parse: func(h *Header) (*ParsedHeader, error) { return parseP3(h, false, false) }},
	{long: "Contact", compact: "m", parse: parseCFTR},
	{long: "Content-Disposition", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Content-Encoding", compact: "e", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Content-Language", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Content-Length", compact: "l", parse: func(h *Header) (*ParsedHeader, error) { return parseP2(h, false) }},
	{long: "Content-Type", compact: "c", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, '/') }},
	{long: "CSeq", parse: parseCSeq},
	{long: "Date", parse: parseDate},
	{long: "Error-Info", parse: func(h *Header) (*ParsedHeader, error) { return parseP3(h, false, false) }},
	{long: "Event", compact: "o", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Expires", parse: func(h *Header) (*ParsedHeader, error) { return parseP2(h, false) }},
	{long: "From", compact: "f", parse: parseCFTR},
	{long: "In-Reply-To", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Max-Forwards", parse: func(h *Header) (*ParsedHeader, error) { return parseP2(h, false) }},
	{long: "MIME-Version", parse: parseP4},
	{long: "Min-Expires", parse: func(h *Header) (*ParsedHeader, error) { return parseP2(h, false) }},
	{long: "Organization", emptyOK: true, parse: parseP4},
	{long: "Priority", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Privacy", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Proxy-Authenticate", parse: func(h *Header) (*ParsedHeader, error) { return parseP5(h, true) }},
	{long: "Proxy-Authorization", parse: func(h *Header) (*ParsedHeader, error) { return parseP5(h, true) }},
	{long: "P-Asserted-Identity", parse: func(h *Header) (*ParsedHeader, error) { return parseP3(h, true, true) }},
	{long: "P-Preferred-Identity", parse: func(h *Header) (*ParsedHeader, error) { return parseP3(h, true, true) }},
	{long: "RAck", parse: parseRAck},
	{long: "Record-Route", parse: parseCFTR},
	{long: "Reply-To", parse: func(h *Header) (*ParsedHeader, error) { return parseP3(h, true, true) }},
	{long: "Require", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Retry-After", parse: parseRetryAfter},
	{long: "Route", parse: parseCFTR},
	{long: "RSeq", parse: func(h *Header) (*ParsedHeader, error) { return parseP2(h, true) }},
	{long: "Server", parse: parseP4},
	{long: "Subject", compact: "s", emptyOK: true, parse: parseP4},
	{long: "Subscription-State", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Supported", compact: "k", emptyOK: true, parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "Timestamp", parse: parseTimestamp},
	{long: "To", compact: "t", parse: parseCFTR},
	{long: "Unsupported", parse: func(h *Header) (*ParsedHeader, error) { return parseP1(h, 0) }},
	{long: "User-Agent", parse: parseP4},
	{long: "Via", compact: "v", parse: parseVia},
	{long: "Warning", parse: parseWarning},
	{long: "WWW-Authenticate", parse: func(h *Header) (*ParsedHeader, error) { return parseP5(h, true) }},
}

// lookupHeader resolves a header name, long or compact, case-insensitively.
// Exact length match only: "Vi" matches nothing.
func lookupHeader(name []byte) *headerEntry {
	if len(name) == 0 {
		return nil
	}
	for i := range headerTable {
		e := &headerTable[i]
		if bytesEqualFoldStr(name, e.long) {
			return e
		}
		if e.compact != "" && bytesEqualFoldStr(name, e.compact) {
			return e
		}
	}
	return nil
}

// headerNameMatches reports whether a record's name matches the given name,
// resolving compact forms on either side through the registry.
func headerNameMatches(h *Header, name string) bool {
	if bytesEqualFoldStr(h.name, name) {
		return true
	}
	e := lookupHeader([]byte(name))
	return e != nil && e == h.entry
}

// Parse materializes the header's value tree. Parsing is idempotent: the
// first call caches the tree and later calls return the same object.
func (h *Header) Parse() (*ParsedHeader, error) {
	if h == nil {
		return nil, ErrInvalidArg
	}
	if h.parsed != nil {
		return h.parsed, nil
	}
	if h.entry == nil {
		return nil, ErrInvalidArg
	}
	if h.isEmpty() {
		if !h.entry.emptyOK {
			return nil, ErrBadProtocol
		}
		h.parsed = &ParsedHeader{hdr: h}
		return h.parsed, nil
	}
	h.rewind()
	ph, err := h.entry.parse(h)
	if err != nil {
		return nil, err
	}
	h.parsed = ph
	return ph, nil
}

// Value parses the header on demand and returns its first live value.
// An empty header yields (nil, nil).
func (h *Header) Value() (*Value, error) {
	ph, err := h.Parse()
	if err != nil {
		return nil, err
	}
	v := ph.value
	for v != nil && v.state == ValueDeleted {
		v = v.next
	}
	return v, nil
}
