package sip

import "bytes"

// Mutation discipline: while a message is modifiable, additions append new
// records with fresh buffers and deletions tombstone existing records.
// Original byte ranges are never moved, so parse trees computed earlier
// stay valid.

// AddHeader appends a new header built from name and value.
func (m *Message) AddHeader(name, value string) (*Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.modifiable {
		return nil, ErrPermission
	}
	buf := make([]byte, 0, len(name)+len(value)+4)
	buf = append(buf, name...)
	buf = append(buf, ": "...)
	buf = append(buf, value...)
	buf = append(buf, crlf...)
	h := newHeaderRecord(m, buf)
	m.hdrs = append(m.hdrs, h)
	m.size += h.Len()
	return h, nil
}

// DeleteHeader tombstones the record. The bytes stay in place; searches
// skip the record and its length leaves the message length.
func (m *Message) DeleteHeader(h *Header) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.modifiable {
		return ErrPermission
	}
	if h == nil || h.msg != m || h.state == HdrDeleted {
		return ErrInvalidArg
	}
	h.state = HdrDeleted
	m.size -= h.Len()
	return nil
}

// DeleteHeaderByName tombstones the first live header matching name.
func (m *Message) DeleteHeaderByName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.modifiable {
		return ErrPermission
	}
	h := m.searchHeader(name, nil)
	if h == nil {
		return ErrInvalidArg
	}
	h.state = HdrDeleted
	m.size -= h.Len()
	return nil
}

// DeleteValue tombstones a single value of a multi-value header. The
// record itself stays live with state HdrDeletedVal.
func (m *Message) DeleteValue(h *Header, v *Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.modifiable {
		return ErrPermission
	}
	if h == nil || h.msg != m || h.state == HdrDeleted || v == nil || v.state == ValueDeleted {
		return ErrInvalidArg
	}
	if v.parent == nil || v.parent.hdr != h {
		return ErrInvalidArg
	}
	v.state = ValueDeleted
	h.state = HdrDeletedVal
	m.size -= v.end - v.start
	return nil
}

// AddParam re-creates the header with " ; param" inserted before the
// terminator, tombstones the original and returns the replacement record.
func (m *Message) AddParam(h *Header, param string) (*Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.modifiable {
		return nil, ErrPermission
	}
	if h == nil || h.msg != m || h.state == HdrDeleted || len(param) == 0 {
		return nil, ErrInvalidArg
	}
	body := bytes.TrimRight(h.buf, crlf)
	buf := make([]byte, 0, len(body)+len(param)+5)
	buf = append(buf, body...)
	buf = append(buf, " ; "...)
	buf = append(buf, param...)
	buf = append(buf, crlf...)

	nh := newHeaderRecord(m, buf)
	h.state = HdrDeleted
	m.size -= h.Len()
	m.hdrs = append(m.hdrs, nh)
	m.size += nh.Len()
	return nh, nil
}

// AddBranchIDToVia adds a branch parameter to the topmost Via header. A
// Via that already carries one is rejected with ErrInvalidArg.
func (m *Message) AddBranchIDToVia(branch string) (*Header, error) {
	via := m.GetHeader("Via", nil)
	if via == nil {
		return nil, ErrInvalidArg
	}
	v, err := via.Value()
	if err != nil {
		return nil, err
	}
	if v == nil || v.Bad() {
		return nil, ErrBadProtocol
	}
	if v.HasParam("branch") {
		return nil, ErrInvalidArg
	}
	return m.AddParam(via, "branch="+branch)
}

// CopyHeader serializes the source header's raw bytes, optionally with an
// appended ;param, into a fresh record on m. The source may belong to a
// different message or to none.
func (m *Message) CopyHeader(src *Header, param string) (*Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.modifiable {
		return nil, ErrPermission
	}
	if src == nil || src.state == HdrDeleted {
		return nil, ErrInvalidArg
	}
	body := bytes.TrimRight(src.buf, crlf)
	buf := make([]byte, 0, len(body)+len(param)+3)
	buf = append(buf, body...)
	if param != "" {
		buf = append(buf, ';')
		buf = append(buf, param...)
	}
	buf = append(buf, crlf...)
	h := newHeaderRecord(m, buf)
	m.hdrs = append(m.hdrs, h)
	m.size += h.Len()
	return h, nil
}

// CopyHeaderByName finds name on src and copies it onto m.
func (m *Message) CopyHeaderByName(src *Message, name, param string) (*Header, error) {
	if src == nil {
		return nil, ErrInvalidArg
	}
	h := src.GetHeader(name, nil)
	if h == nil {
		return nil, ErrInvalidArg
	}
	return m.CopyHeader(h, param)
}
