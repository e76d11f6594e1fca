package sip

import "bytes"

// The five generic strategies below cover most of the registry. Each takes
// the cursor at the record start, walks the value region and returns the
// parse tree. A malformed value is marked bad and the scan moves to the
// next comma; only structural failures (no colon, unbalanced quote) fail
// the whole header.

// parseParams scans a ;-introduced parameter list at the cursor. Parameter
// values may be double-quoted; the quotes are stripped from the slice.
// ok is false when the list is malformed (bare ';' with nothing after it).
func (h *Header) parseParams() (params []Param, ok bool) {
	for {
		if !h.skipWhiteSpace() {
			return params, true
		}
		if h.peek() != ';' {
			return params, true
		}
		h.cur++

		if !h.skipWhiteSpace() {
			return params, false
		}
		start := h.cur
		var p Param

		if !h.findSeparator('=', ';', ',') {
			p.Name = h.buf[start:h.cur]
			return append(params, p), true
		}
		p.Name = h.buf[start:h.cur]

		if !h.skipWhiteSpace() || h.peek() == ',' {
			return append(params, p), true
		}
		if h.peek() == ';' {
			params = append(params, p)
			continue
		}
		if h.peek() != '=' {
			return append(params, p), false
		}
		h.cur++

		if !h.skipWhiteSpace() {
			return append(params, p), false
		}

		quoted := false
		if h.peek() == '"' {
			h.cur++
			quoted = true
		}
		vstart := h.cur
		if quoted {
			if !h.findToken('"') {
				return append(params, p), false
			}
			p.Value = h.buf[vstart : h.cur-1]
		} else {
			if !h.findSeparator(';', ',', 0) {
				return append(params, p), false
			}
			p.Value = h.buf[vstart:h.cur]
		}
		params = append(params, p)
	}
}

// parseP1 handles the token-list form
//
//	Name: val1[;par1=pval1;...][, val2[;parlist]]
//
// where a value is either a single token or a sep-joined pair (for example
// type/subtype). Accept, Content-Type, Event, Require, Supported and their
// relatives use it.
func parseP1(h *Header, sep byte) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	var last *Value
	for !h.atEnd() {
		v := ph.newValue(last, h.cur)
		if !h.findSeparator(sep, ',', ';') {
			v.Str = h.buf[v.start:h.cur]
			v.end = h.cur
			break
		}
		c := h.peek()

		if isSpace(c) && sep == 0 {
			v.Str = h.buf[v.start:h.cur]
			if !h.skipWhiteSpace() {
				v.end = h.cur
				break
			}
			c = h.peek()
		}

		if c == ',' {
			t := h.cur
			h.cur--
			h.reverseSkipWhiteSpace()
			if h.cur+1 > v.start {
				v.Str = h.buf[v.start : h.cur+1]
			}
			h.cur = t
			goto nextVal
		}

		if sep != 0 && c == sep {
			v.Str = h.buf[v.start:h.cur]
			h.cur++
			start2 := h.cur
			if h.findSeparator(';', ',', 0) {
				v.Str2 = h.buf[start2:h.cur]
				if h.peek() == ',' {
					goto nextVal
				}
			} else {
				v.Str2 = h.buf[start2:h.cur]
				v.end = h.cur
				goto done
			}
		} else if sep != 0 {
			v.state = ValueBad
			goto nextVal
		}

		if c == ';' {
			t := h.cur
			h.cur--
			h.reverseSkipWhiteSpace()
			if h.cur+1 > v.start {
				v.Str = h.buf[v.start : h.cur+1]
			}
			h.cur = t
		}

		{
			params, ok := h.parseParams()
			v.Params = params
			if !ok {
				v.state = ValueBad
			}
		}

	nextVal:
		if !h.findToken(',') {
			v.end = h.cur
			break
		}
		v.end = h.cur - 1
		last = v
		h.skipWhiteSpace()
	}
done:
	return ph, nil
}

// parseP2 handles single-integer headers: Expires, Content-Length,
// Max-Forwards, Min-Expires, RSeq. RSeq additionally treats zero as bad.
func parseP2(h *Header, zeroBad bool) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)
	n, ok := h.atoi()
	if !ok || (zeroBad && n == 0) {
		v.state = ValueBad
	}
	v.Int = n
	v.end = h.cur
	return ph, nil
}

// parseP3 handles angle-quoted URI lists:
//
//	Name: [display |"display"] <uri>[;params][, ...]
//
// strs selects the display+URI pair form (Reply-To, P-Asserted-Identity);
// without it the value is the bare enclosed URI (Alert-Info, Call-Info,
// Error-Info). withURI runs the URI parser over the enclosed bytes.
func parseP3(h *Header, strs bool, withURI bool) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	var last *Value
	for !h.atEnd() {
		v := ph.newValue(last, h.cur)

		if strs {
			if h.findToken('<') {
				cur := h.cur
				h.cur = v.start
				if h.peek() != '<' {
					tmp := h.cur
					if h.peek() == '"' {
						h.cur++
						tmp++
						if !h.findToken('"') {
							v.state = ValueBad
							goto nextVal
						}
						h.cur -= 2
					} else {
						h.cur = cur - 2
						h.reverseSkipWhiteSpace()
					}
					v.Display = h.buf[tmp : h.cur+1]
				}
				h.cur = cur
				ustart := h.cur
				if !h.findToken('>') {
					v.Display = nil
					v.state = ValueBad
					goto nextVal
				}
				v.URI = h.buf[ustart : h.cur-1]
			} else {
				v.state = ValueBad
				goto nextVal
			}
		} else {
			if h.findToken('<') {
				ustart := h.cur
				if !h.findToken('>') {
					v.state = ValueBad
					goto nextVal
				}
				v.URI = h.buf[ustart : h.cur-1]
				h.cur--
			} else {
				v.state = ValueBad
				goto nextVal
			}
		}
		if withURI && len(v.URI) > 0 {
			u, err := ParseURI(v.URI)
			v.ParsedURI = u
			if err != nil {
				v.state = ValueBad
			}
		}

		if !h.findSeparator(',', ';', 0) {
			v.end = h.cur
			break
		}
		if h.peek() == ';' {
			params, ok := h.parseParams()
			v.Params = params
			if !ok {
				v.state = ValueBad
			}
			goto nextVal
		}
		if h.peek() == ',' {
			h.cur--
		}

	nextVal:
		if !h.findToken(',') {
			v.end = h.cur
			break
		}
		v.end = h.cur - 1
		last = v
		h.skipWhiteSpace()
	}
	return ph, nil
}

// parseP4 handles opaque free-text headers, the whole value region as one
// string up to the final CRLF: Subject, Organization, Server, User-Agent,
// Call-ID, MIME-Version.
func parseP4(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)
	v.Str = bytes.TrimRight(h.buf[h.cur:h.end], crlf)
	v.end = h.end
	return ph, nil
}

// parseP5 handles the challenge/credential form used by WWW-Authenticate,
// Proxy-Authenticate, Authorization and Proxy-Authorization:
//
//	Name: scheme SP param *(COMMA param)
//
// where a param value may be a token, a quoted string or an enclosed URI.
func parseP5(h *Header, withURI bool) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)

	if !h.findWhiteSpace() {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	v.AuthScheme = h.buf[v.start:h.cur]

	for {
		if !h.skipWhiteSpace() {
			v.state = ValueBad
			break
		}
		start := h.cur
		var p Param

		if !h.findSeparator('=', ',', 0) {
			p.Name = h.buf[start:h.cur]
			v.Params = append(v.Params, p)
			break
		}
		p.Name = h.buf[start:h.cur]

		if !h.skipWhiteSpace() || h.peek() == ',' {
			v.Params = append(v.Params, p)
			if h.cur < h.end {
				h.cur++
			}
			continue
		}
		h.cur++ // '='

		if !h.skipWhiteSpace() {
			v.state = ValueBad
			break
		}

		var quote byte
		isURI := false
		switch h.peek() {
		case '"':
			quote = '"'
			h.cur++
		case '<':
			quote = '>'
			isURI = true
			h.cur++
		}
		vstart := h.cur

		if quote != 0 {
			if !h.findToken(quote) {
				v.state = ValueBad
				break
			}
			p.Value = h.buf[vstart : h.cur-1]
		}

		if !h.findToken(',') {
			if quote == 0 {
				p.Value = bytes.TrimRight(h.buf[vstart:h.end], " \t\r\n")
			}
			v.Params = append(v.Params, p)
			break
		}
		if quote == 0 {
			p.Value = bytes.TrimRight(h.buf[vstart:h.cur-1], " \t")
		}
		if isURI && withURI && len(p.Value) > 0 {
			u, err := ParseURI(p.Value)
			v.ParsedURI = u
			if err != nil {
				v.state = ValueBad
			}
		}
		v.Params = append(v.Params, p)
	}
	v.end = h.cur
	return ph, nil
}
