package sip

// parseProtocolVersion consumes "SIP/2.0" style protocol tokens, leaving
// the cursor after the version. Used by the start-line and Via grammars.
func (h *Header) parseProtocolVersion() (name, version []byte, ok bool) {
	if !h.skipWhiteSpace() {
		return nil, nil, false
	}
	nstart := h.cur
	if h.cur+3 > h.end || !bytesEqualFoldStr(h.buf[h.cur:h.cur+3], "sip") {
		return nil, nil, false
	}
	name = h.buf[nstart : nstart+3]

	if !h.findToken('/') {
		return nil, nil, false
	}
	if !h.skipWhiteSpace() {
		return nil, nil, false
	}
	vstart := h.cur
	for !h.atEnd() && isDigit(h.peek()) {
		h.cur++
	}
	if h.atEnd() || h.peek() != '.' {
		return nil, nil, false
	}
	h.cur++
	if h.atEnd() || !isDigit(h.peek()) {
		return nil, nil, false
	}
	for !h.atEnd() && isDigit(h.peek()) {
		h.cur++
	}
	if h.atEnd() {
		return nil, nil, false
	}
	return name, h.buf[vstart:h.cur], true
}

// parseVia walks a comma-separated Via list. Each value is
//
//	SIP/2.0/transport host [:port] *(;param)
//
// with [bracketed] IPv6 hosts recognised. A malformed value is marked bad
// and the scan resumes after the next unquoted comma.
func parseVia(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	var last *Value
	for !h.atEnd() {
		v := ph.newValue(last, h.cur)

		name, version, ok := h.parseProtocolVersion()
		if !ok {
			if bad := viaSkipValue(h, v); bad != nil {
				return nil, bad
			}
			goto nextVal
		}
		v.ViaProtocolName = name
		v.ViaProtocolVersion = version

		if !h.findToken('/') || !h.skipWhiteSpace() {
			if bad := viaSkipValue(h, v); bad != nil {
				return nil, bad
			}
			goto nextVal
		}

		{
			tstart := h.cur
			if !h.findWhiteSpace() {
				if bad := viaSkipValue(h, v); bad != nil {
					return nil, bad
				}
				goto nextVal
			}
			v.ViaTransport = h.buf[tstart:h.cur]
		}

		if !h.skipWhiteSpace() {
			if bad := viaSkipValue(h, v); bad != nil {
				return nil, bad
			}
			goto nextVal
		}

		{
			hstart := h.cur
			if h.peek() == '[' {
				if !h.findToken(']') {
					if bad := viaSkipValue(h, v); bad != nil {
						return nil, bad
					}
					goto nextVal
				}
			} else if !h.findSeparator(';', ',', ':') {
				if bad := viaSkipValue(h, v); bad != nil {
					return nil, bad
				}
				goto nextVal
			}
			v.ViaHost = h.buf[hstart:h.cur]
		}

		if h.skipWhiteSpace() && h.peek() == ':' {
			h.cur++
			port, ok := h.atoi()
			if !ok {
				if bad := viaSkipValue(h, v); bad != nil {
					return nil, bad
				}
				goto nextVal
			}
			v.ViaPort = port
		}

		// sanity check in place of a full v4/v6 address check
		if len(v.ViaHost) == 0 || (!isAlnum(v.ViaHost[0]) && v.ViaHost[0] != '[') {
			if bad := viaSkipValue(h, v); bad != nil {
				return nil, bad
			}
			goto nextVal
		}

		{
			params, ok := h.parseParams()
			v.Params = params
			if !ok {
				v.state = ValueBad
			}
		}

	nextVal:
		v.end = h.cur
		if !h.findToken(',') {
			break
		}
		last = v
		h.skipWhiteSpace()
	}
	return ph, nil
}

// viaSkipValue marks the value bad and advances to the next comma. An
// unterminated quote is a structural failure for the whole header.
func viaSkipValue(h *Header, v *Value) error {
	if !h.gotoNextValue() {
		return ErrBadProtocol
	}
	v.state = ValueBad
	return nil
}
