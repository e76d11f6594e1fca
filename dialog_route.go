package vxsip

import (
	"bytes"

	"github.com/voxaris/vxsip/sip"
)

// Route set handling per RFC 3261 12.2.1.1:
//
// If the route set is empty the remote target URI is the Request-URI and
// no Route header is added. If the first URI of the route set carries the
// lr parameter the remote target stays in the Request-URI and the Route
// header carries the set in order, remote target appended last. Without
// lr (strict routing) the first URI becomes the Request-URI and the Route
// header carries the remaining hops with the remote target appended last.

// routeNode is one hop of a dialog's route set: an owned copy of the
// Record-Route value text, the URI within it and its lr flag.
type routeNode struct {
	raw  []byte
	uri  []byte
	lr   bool
	next *routeNode
}

// routeNodeFromValue copies one Record-Route value out of its message.
func routeNodeFromValue(v *sip.Value) *routeNode {
	rawSrc := v.Raw()
	if len(rawSrc) == 0 || len(v.URI) == 0 || v.ParsedURI == nil {
		return nil
	}
	raw := make([]byte, len(rawSrc))
	copy(raw, rawSrc)
	n := &routeNode{raw: raw}
	if idx := bytes.Index(raw, v.URI); idx >= 0 {
		n.uri = raw[idx : idx+len(v.URI)]
	} else {
		n.uri = raw
	}
	n.lr = v.ParsedURI.Params.Has("lr")
	return n
}

// computeRouteSet walks the message's Record-Route headers and installs
// the derived route state on the dialog. The UAS takes the values in
// order, the UAC in reverse. An empty Record-Route list leaves the dialog
// route fields nil.
func (r *Registry) computeRouteSet(d *Dialog, msg *sip.Message, typ DialogType) error {
	var head, tail *routeNode
	cnt := 0

	for h := msg.GetHeader("Record-Route", nil); h != nil; h = msg.GetHeader("Record-Route", h) {
		v, err := h.Value()
		if err != nil {
			continue
		}
		for ; v != nil; v = v.Next() {
			if v.Bad() {
				continue
			}
			n := routeNodeFromValue(v)
			if n == nil {
				continue
			}
			cnt++
			switch {
			case head == nil:
				head, tail = n, n
			case typ == UAS:
				tail.next = n
				tail = n
			default: // UAC reverses
				n.next = head
				head = n
			}
		}
	}
	if cnt == 0 {
		return nil
	}
	return d.setRouteHeader(head)
}

// recomputeRouteSet drops the current route state and rebuilds it from the
// message; Record-Routes of a 2xx take precedence over the provisional set.
func (r *Registry) recomputeRouteSet(d *Dialog, msg *sip.Message, typ DialogType) error {
	d.mu.Lock()
	d.routeSet = nil
	d.reqURI = nil
	d.rset = nil
	d.mu.Unlock()
	return r.computeRouteSet(d, msg, typ)
}

// setRouteHeader materializes the printable route set, the Route header
// for subsequent requests and, under strict routing, the Request-URI.
func (d *Dialog) setRouteHeader(head *routeNode) error {
	v, err := d.remoteTarget.Value()
	if err != nil || v == nil || len(v.URI) == 0 {
		return sip.ErrInvalidArg
	}
	target := v.URI

	var reqURI []byte
	route := head
	if !head.lr {
		// strict routing: first hop becomes the Request-URI
		reqURI = make([]byte, len(head.uri))
		copy(reqURI, head.uri)
		route = head.next
	}

	var rset bytes.Buffer
	for n := head; n != nil; n = n.next {
		if rset.Len() > 0 {
			rset.WriteByte(',')
		}
		rset.Write(n.raw)
	}

	var hdr bytes.Buffer
	hdr.WriteString("Route: ")
	for n := route; n != nil; n = n.next {
		hdr.Write(n.raw)
		hdr.WriteByte(',')
	}
	hdr.WriteByte('<')
	hdr.Write(target)
	hdr.WriteByte('>')
	hdr.WriteString("\r\n")

	d.mu.Lock()
	d.rset = rset.Bytes()
	d.reqURI = reqURI
	d.routeSet = sip.NewHeaderFromBytes(hdr.Bytes())
	d.mu.Unlock()
	return nil
}
