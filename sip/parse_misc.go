package sip

// parseCSeq handles "CSeq" HCOLON 1*DIGIT LWS Method. A method outside the
// known table marks the value bad.
func parseCSeq(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)

	num, ok := h.atoi()
	if !ok {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	v.CSeqNum = num

	if !h.skipWhiteSpace() {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	mstart := h.cur
	if !h.findWhiteSpace() {
		v.state = ValueBad
		v.end = h.cur
		return ph, nil
	}
	m, ok := matchMethod(h.buf[mstart:h.cur])
	if !ok {
		v.state = ValueBad
		v.end = h.cur
		return ph, nil
	}
	v.Method = m
	v.end = h.cur
	return ph, nil
}

// parseRAck handles "RAck" HCOLON response-num LWS CSeq-num LWS Method.
// A zero response number is bad.
func parseRAck(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)

	resp, ok := h.atoi()
	if !ok || resp == 0 {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	v.RespNum = resp

	if !h.skipWhiteSpace() {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	cseq, ok := h.atoi()
	if !ok {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	v.CSeqNum = cseq

	if !h.skipWhiteSpace() {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	mstart := h.cur
	if !h.findWhiteSpace() {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	m, ok := matchMethod(h.buf[mstart:h.cur])
	if !ok {
		v.state = ValueBad
		v.end = h.end
		return ph, nil
	}
	v.Method = m
	v.end = h.cur
	return ph, nil
}

// parseAllow handles a comma-separated list of method tokens; each maps to
// its entry in the method table, unknown tokens are bad.
func parseAllow(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	var last *Value
	for !h.atEnd() {
		v := ph.newValue(last, h.cur)
		end := false
		if !h.findSeparator(',', 0, 0) {
			end = true
		}
		tok := h.buf[v.start:h.cur]
		m, ok := matchMethod(tok)
		if !ok {
			v.state = ValueBad
		} else {
			v.Method = m
		}
		if end {
			v.end = h.cur
			break
		}
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

// parseWarning handles "Warning" HCOLON warn-code SP warn-agent SP warn-text
// with warn-code a 3-digit number in 100..999 and warn-text quoted. A bad
// field marks the value; following values still parse.
func parseWarning(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	var last *Value
	for !h.atEnd() {
		v := ph.newValue(last, h.cur)

		code, ok := h.atoi()
		if !ok || code < 100 || code > 999 {
			v.state = ValueBad
			goto nextVal
		}
		v.WarnCode = code

		if !h.skipWhiteSpace() {
			v.state = ValueBad
			goto nextVal
		}

		{
			astart := h.cur
			if !h.findToken('"') {
				// warning text must be present
				v.state = ValueBad
				goto nextVal
			}
			t := h.cur
			h.cur -= 2
			h.reverseSkipWhiteSpace()
			if h.cur <= astart {
				v.state = ValueBad
			} else {
				v.WarnAgent = h.buf[astart : h.cur+1]
			}
			h.cur = t

			tstart := h.cur
			if !h.findToken('"') {
				v.state = ValueBad
				goto nextVal
			}
			v.WarnText = h.buf[tstart : h.cur-1]
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

// parseDate handles RFC 3261 20.17:
//
//	Date: wkday "," SP 2DIGIT SP month SP 4DIGIT SP time SP "GMT"
//
// The field walk is fixed-order; the first malformed field fails the header.
func parseDate(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)
	v.end = h.end

	wstart := h.cur
	if !h.findToken(',') {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}
	v.DateWeekday = h.buf[wstart : h.cur-1]
	if !h.skipWhiteSpace() {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}

	day, ok := h.atoi()
	if !ok {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}
	v.DateDay = day
	if !h.skipWhiteSpace() {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}

	mstart := h.cur
	if !h.findToken(' ') {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}
	v.DateMonth = h.buf[mstart : h.cur-1]

	year, ok := h.atoi()
	if !ok {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}
	v.DateYear = year
	if !h.skipWhiteSpace() {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}

	tstart := h.cur
	if !h.findToken(' ') {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}
	v.DateTime = h.buf[tstart : h.cur-1]

	if h.end-h.cur > 2 {
		v.DateTZ = h.buf[h.cur : h.end-2]
	}
	return ph, nil
}

// parseRetryAfter handles RFC 3261 20.33:
//
//	Retry-After: delta-seconds [comment] *(;param)
//
// with the optional comment parenthesised.
func parseRetryAfter(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)
	v.end = h.end

	n, ok := h.atoi()
	if !ok {
		v.state = ValueBad
	}
	v.Int = n

	if h.findToken('(') {
		cstart := h.cur
		if !h.findToken(')') {
			v.state = ValueBad
			return ph, nil
		}
		v.Str = h.buf[cstart : h.cur-1]
		if h.findToken(';') {
			h.cur--
			params, ok := h.parseParams()
			v.Params = params
			if !ok {
				v.state = ValueBad
			}
		}
	} else {
		h.cur = v.start
		if h.findToken(';') {
			h.cur--
			params, ok := h.parseParams()
			v.Params = params
			if !ok {
				v.state = ValueBad
			}
		}
	}
	return ph, nil
}

// parseTimestamp handles RFC 3261 20.38: a timestamp with an optional delay,
// both kept as strings.
func parseTimestamp(h *Header) (*ParsedHeader, error) {
	if !h.gotoValues() {
		return nil, ErrBadProtocol
	}
	ph := &ParsedHeader{hdr: h}
	v := ph.newValue(nil, h.cur)
	v.end = h.end

	if !h.skipWhiteSpace() {
		v.state = ValueBad
		return ph, ErrBadProtocol
	}
	tstart := h.cur
	if h.findWhiteSpace() {
		v.Str = h.buf[tstart:h.cur]
		h.skipWhiteSpace()
		dstart := h.cur
		if !h.findCR() {
			v.state = ValueBad
			return ph, ErrBadProtocol
		}
		if h.cur > dstart {
			v.Str2 = h.buf[dstart:h.cur]
		}
	} else {
		v.Str = h.buf[tstart:h.cur]
	}
	return ph, nil
}
