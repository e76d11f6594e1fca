package sip

import "bytes"

// ValueState marks a single value within a multi-value header. A bad value
// keeps its place in the list so the remaining values still parse.
type ValueState uint8

const (
	ValueOK ValueState = iota
	ValueBad
	ValueDeleted
)

// ParsedHeader is the root of a header's parse tree: a list of values and
// a back-pointer to the raw record the byte ranges reference.
type ParsedHeader struct {
	hdr   *Header
	value *Value
}

// Header returns the raw record this tree was parsed from.
func (p *ParsedHeader) Header() *Header { return p.hdr }

// Value returns the first value of the header, nil for an empty header.
func (p *ParsedHeader) Value() *Value { return p.value }

// Param is a single name[=value] parameter. Both fields are subslices of
// the owning header's buffer; quoted values have the quotes stripped.
type Param struct {
	Name  []byte
	Value []byte
}

// paramValue performs a case-insensitive parameter lookup.
func paramValue(params []Param, name string) ([]byte, bool) {
	for _, p := range params {
		if bytesEqualFoldStr(p.Name, name) {
			return p.Value, true
		}
	}
	return nil, false
}

// Value is one comma-separated value of a header. The variant fields are
// populated by the grammar that owns the header family; everything is a
// subslice of the raw header bytes.
type Value struct {
	start  int
	end    int
	state  ValueState
	next   *Value
	parent *ParsedHeader

	// single-string and string-pair families (P1, P4, Timestamp)
	Str  []byte
	Str2 []byte

	// integer family (P2, Retry-After)
	Int int

	Params []Param

	// Contact/From/To/Route/Record-Route
	Display   []byte
	URI       []byte
	ParsedURI *URI

	// Via
	ViaProtocolName    []byte
	ViaProtocolVersion []byte
	ViaTransport       []byte
	ViaHost            []byte
	ViaPort            int

	// CSeq, RAck, Allow
	CSeqNum int
	RespNum int
	Method  RequestMethod

	// Warning
	WarnCode  int
	WarnAgent []byte
	WarnText  []byte

	// Date
	DateWeekday []byte
	DateDay     int
	DateMonth   []byte
	DateYear    int
	DateTime    []byte
	DateTZ      []byte

	// challenge/credentials (P5)
	AuthScheme []byte
}

// Next returns the following value of a multi-value header, skipping
// deleted values.
func (v *Value) Next() *Value {
	n := v.next
	for n != nil && n.state == ValueDeleted {
		n = n.next
	}
	return n
}

// State returns the value's parse state.
func (v *Value) State() ValueState { return v.state }

// Bad reports whether the value failed its grammar.
func (v *Value) Bad() bool { return v.state == ValueBad }

// Raw returns the value's raw byte range within its header.
func (v *Value) Raw() []byte {
	if v.parent == nil || v.parent.hdr == nil || v.end <= v.start {
		return nil
	}
	b := v.parent.hdr.buf[v.start:v.end]
	// constructed values may keep the header terminator in range
	return bytes.TrimRight(b, "\r\n")
}

// Param returns the named parameter's value. The second result is false
// when the parameter is absent; a present valueless parameter (such as lr)
// returns (nil, true).
func (v *Value) Param(name string) ([]byte, bool) {
	return paramValue(v.Params, name)
}

// HasParam reports presence of a named parameter.
func (v *Value) HasParam(name string) bool {
	_, ok := paramValue(v.Params, name)
	return ok
}

// newValue appends a fresh value node at the cursor position.
func (p *ParsedHeader) newValue(last *Value, start int) *Value {
	v := &Value{start: start, parent: p}
	if last != nil {
		last.next = v
	} else {
		p.value = v
	}
	return v
}
