package vxsip

import (
	"bytes"

	"github.com/voxaris/vxsip/sip"
)

// xchgFromTo builds a standalone tag-bearing header from the peer header
// of a message: the From value relabeled "To" (or the To value relabeled
// "From"). Dialog establishment stores the peer's identity under the label
// it will carry on subsequent in-dialog messages.
func xchgFromTo(msg *sip.Message, takeFrom bool) *sip.Header {
	name, label := "From", "To"
	if !takeFrom {
		name, label = "To", "From"
	}
	h := msg.GetHeader(name, nil)
	if h == nil {
		return nil
	}
	body := h.RawValue()
	if body == nil {
		return nil
	}
	buf := make([]byte, 0, len(label)+2+len(body))
	buf = append(buf, label...)
	buf = append(buf, ": "...)
	buf = append(buf, body...)
	return sip.NewHeaderFromBytes(buf)
}

// Seed creates a partial dialog from an outgoing (UAC) or incoming (UAS)
// INVITE or SUBSCRIBE request. The route set is computed from the
// request's Record-Routes, the partial-dialog timer is armed for 64*T1 and
// a UAC dialog is indexed in the partial table under (local-tag, call-id).
// fn runs, with a nil message, if the partial-dialog timer expires; a
// failure response runs the function passed to Complete or Update instead.
//
// The returned dialog carries a caller reference; Release it when done.
func (r *Registry) Seed(conn Connection, msg *sip.Message, fn CompletionFunc, onFork bool, typ DialogType) (*Dialog, error) {
	isReq, err := msg.IsRequest()
	if err != nil || !isReq {
		return nil, sip.ErrInvalidArg
	}
	method, err := msg.RequestMethod()
	if err != nil || (method != sip.INVITE && method != sip.SUBSCRIBE) {
		return nil, sip.ErrInvalidArg
	}

	var fhdr, thdr *sip.Header
	if typ == UAS {
		thdr = xchgFromTo(msg, true)
	} else {
		fhdr = msg.GetHeader("From", nil)
	}
	cihdr := msg.GetHeader("Call-ID", nil)
	chdr := msg.GetHeader("Contact", nil)
	var evhdr *sip.Header
	if method == sip.SUBSCRIBE {
		evhdr = msg.GetHeader("Event", nil)
	}
	if (fhdr == nil && thdr == nil) || cihdr == nil || chdr == nil ||
		(method == sip.SUBSCRIBE && evhdr == nil) {
		return nil, sip.ErrInvalidArg
	}

	// sanity checks before the headers are stored away
	fromTag, err := msg.FromTag()
	if err != nil || fromTag == nil {
		return nil, sip.ErrInvalidArg
	}
	if u, err := msg.FromURIStr(); err != nil || u == nil {
		return nil, sip.ErrInvalidArg
	}
	cseq, err := msg.CSeqNum()
	if err != nil || cseq < 0 {
		return nil, sip.ErrInvalidArg
	}
	callID, err := msg.CallID()
	if err != nil || callID == nil {
		return nil, sip.ErrInvalidArg
	}
	if u, err := msg.ToURIStr(); err != nil || u == nil {
		return nil, sip.ErrInvalidArg
	}
	if u, err := msg.ContactURIStr(); err != nil || u == nil {
		return nil, sip.ErrInvalidArg
	}

	d := &Dialog{
		reg:    r,
		dtype:  typ,
		method: method,
		onFork: onFork,
		conn:   conn,
	}
	if typ == UAS {
		// the To header with our tag arrives at completion
		d.remoteURITag = thdr
		d.remoteCSeq = cseq
	} else {
		d.localURITag = fhdr.Dup()
		d.localCSeq = cseq
	}
	d.remoteTarget = chdr.Dup()
	d.callID = cihdr.Dup()
	if method == sip.SUBSCRIBE {
		d.event = evhdr.Dup()
	}

	if err := r.computeRouteSet(d, msg, typ); err != nil {
		return nil, err
	}

	if conn != nil {
		conn.Ref()
	}
	d.timer.init(64 * connTimer1(conn))

	d.refcnt = 1 // caller
	if typ == UAC {
		d.id = md5Digest(fromTag, callID)
		d.refcnt++ // partial-table membership
		r.partial.add(d)
	}
	d.timer.schedule(func() { r.selfDestruct(d, fn) })

	if r.metrics != nil {
		r.metrics.seeded.Inc()
	}
	r.log.Debug().
		Str("method", string(method)).
		Str("state", d.State().String()).
		Msg("dialog seeded")
	return d, nil
}

// Complete drives a seeded dialog with the response to its request, or
// with a NOTIFY matching a seeded SUBSCRIBE. Provisional responses make
// the dialog EARLY, 2xx and accepted NOTIFY make it CONFIRMED and a final
// failure destroys it. On success the full-dialog digest is computed and
// the dialog moves from the partial to the full table.
func (r *Registry) Complete(msg *sip.Message, d *Dialog, fn CompletionFunc) (*Dialog, error) {
	if d == nil || msg == nil {
		return nil, sip.ErrInvalidArg
	}
	isReq, err := msg.IsRequest()
	if err != nil {
		return nil, sip.ErrInvalidArg
	}
	var method sip.RequestMethod
	if isReq {
		method, err = msg.RequestMethod()
	} else {
		method, err = msg.CSeqMethod()
	}
	if err != nil {
		return nil, sip.ErrInvalidArg
	}
	if isReq && (d.method == sip.INVITE || method != sip.NOTIFY) {
		return nil, sip.ErrInvalidArg
	}

	if method != sip.NOTIFY {
		num, err := msg.CSeqNum()
		if err != nil {
			return nil, sip.ErrInvalidArg
		}
		if d.dtype == UAC && num != d.localCSeq {
			return nil, sip.ErrInvalidArg
		}
		if d.dtype == UAS && num != d.remoteCSeq {
			return nil, sip.ErrInvalidArg
		}
	}

	var thdr *sip.Header
	var ttag []byte
	prev := d.State()

	if method == sip.NOTIFY {
		thdr = xchgFromTo(msg, true)
		if thdr == nil {
			return nil, sip.ErrInvalidArg
		}
		if msg.GetHeader("Event", nil) == nil ||
			msg.GetHeader("Subscription-State", nil) == nil {
			return nil, sip.ErrInvalidArg
		}
		sstate, err := msg.SubscriptionState()
		if err != nil || sstate == nil {
			return nil, sip.ErrInvalidArg
		}
		if !bytesEqualFoldStr(sstate, "pending") && !bytesEqualFoldStr(sstate, "active") {
			return nil, sip.ErrInvalidArg
		}
		if !r.notifyEventMatches(d, msg) {
			return nil, sip.ErrInvalidArg
		}
		ttag, err = msg.FromTag()
		if err != nil || ttag == nil {
			return nil, sip.ErrInvalidArg
		}

		d.mu.Lock()
		if d.state == StateDestroyed {
			// the partial-dialog timer won the race
			d.mu.Unlock()
			return nil, sip.ErrInvalidArg
		}
		d.state = StateConfirmed
		if d.dtype == UAC {
			d.remoteURITag = thdr
		} else {
			d.localURITag = thdr
		}
		d.mu.Unlock()
	} else {
		if d.dtype == UAS {
			thdr = xchgFromTo(msg, false)
		} else {
			thdr = msg.GetHeader("To", nil)
		}
		if thdr == nil {
			return nil, sip.ErrInvalidArg
		}
		ttag, err = msg.ToTag()
		if err != nil || ttag == nil {
			return nil, sip.ErrInvalidArg
		}

		code, err := msg.ResponseCode()
		if err != nil {
			return nil, sip.ErrInvalidArg
		}
		d.mu.Lock()
		if d.state == StateDestroyed {
			// the partial-dialog timer won the race
			d.mu.Unlock()
			return nil, sip.ErrInvalidArg
		}
		switch {
		case code >= 100 && code < 200:
			d.state = StateEarly
		case code >= 200 && code < 300:
			d.state = StateConfirmed
		default:
			d.state = StateDestroyed
			d.mu.Unlock()
			d.timer.cancel()
			dropMembership := r.partial.remove(d)
			if fn != nil {
				fn(d, msg)
			}
			r.stateChanged(d, msg, prev, StateDestroyed)
			if dropMembership {
				d.unref()
			}
			return nil, nil
		}
		if d.dtype == UAS {
			d.localURITag = thdr
		} else {
			d.remoteURITag = thdr.Dup()
		}
		d.mu.Unlock()
	}

	// For the UAC the peer's Contact in the completing message refreshes
	// the remote target, and its Record-Routes take precedence over the
	// request's. The UAS keeps what it extracted from the request.
	if d.dtype == UAC {
		if ch := msg.GetHeader("Contact", nil); ch != nil {
			d.mu.Lock()
			d.remoteTarget = ch.Dup()
			d.mu.Unlock()
		}
		if msg.GetHeader("Record-Route", nil) != nil {
			r.recomputeRouteSet(d, msg, UAC)
		}
	}

	d.timer.cancel()

	var localHdr *sip.Header
	if d.dtype == UAC {
		localHdr = d.localURITag
	} else {
		localHdr = d.remoteURITag
	}
	otherTag := tagOf(localHdr)
	callID := d.callIDBytes()

	// A dialog lives in at most one table. The partial index is keyed by
	// the seed digest, so leave it before the full digest replaces d.id.
	if r.partial.remove(d) {
		d.unref()
	}

	d.mu.Lock()
	if d.dtype == UAC {
		// (local-tag, remote-tag, call-id)
		d.id = md5Digest(otherTag, ttag, callID)
	} else {
		d.id = md5Digest(ttag, otherTag, callID)
	}
	d.refcnt++ // full-table membership
	d.mu.Unlock()

	r.full.add(d)

	cur := d.State()
	r.stateChanged(d, msg, prev, cur)
	r.log.Debug().
		Str("prev", prev.String()).
		Str("state", cur.String()).
		Msg("dialog completed")
	return d, nil
}

// notifyEventMatches verifies the NOTIFY's Event package and id parameter
// against the ones recorded at SUBSCRIBE time: both ids absent, or both
// present and equal.
func (r *Registry) notifyEventMatches(d *Dialog, msg *sip.Message) bool {
	event, err := msg.Event()
	if err != nil || event == nil {
		return false
	}
	evh := msg.GetHeader("Event", nil)
	evv, err := evh.Value()
	if err != nil || evv == nil {
		return false
	}
	idVal, idOK := evv.Param("id")

	if d.event == nil {
		return false
	}
	dv, err := d.event.Value()
	if err != nil || dv == nil {
		return false
	}
	if !bytes.Equal(dv.Str, event) {
		return false
	}
	dlgID, dlgOK := dv.Param("id")
	if idOK != dlgOK {
		return false
	}
	if idOK && !bytesEqualFold(dlgID, idVal) {
		return false
	}
	return true
}

// Create builds a full dialog directly from a response (or NOTIFY) plus,
// on the UAS side, the original request carrying the remote target. Used
// when no prior seed exists.
func (r *Registry) Create(resp, req *sip.Message, typ DialogType) (*Dialog, error) {
	if resp == nil {
		return nil, sip.ErrInvalidArg
	}
	if typ == UAS {
		if req == nil {
			return nil, sip.ErrInvalidArg
		}
		isReq, err := req.IsRequest()
		if err != nil || !isReq {
			return nil, sip.ErrInvalidArg
		}
		m, err := req.RequestMethod()
		if err != nil || (m != sip.INVITE && m != sip.SUBSCRIBE) {
			return nil, sip.ErrInvalidArg
		}
	}

	var method sip.RequestMethod
	code := 0
	isReq, err := resp.IsRequest()
	if err != nil {
		return nil, sip.ErrInvalidArg
	}
	if isReq {
		// only a NOTIFY request can create a dialog
		method, err = resp.RequestMethod()
		if err != nil || method != sip.NOTIFY {
			return nil, sip.ErrInvalidArg
		}
	} else {
		code, err = resp.ResponseCode()
		if err != nil {
			return nil, sip.ErrInvalidArg
		}
		method, err = resp.CSeqMethod()
		if err != nil || code < 100 || code >= 300 ||
			(method != sip.INVITE && method != sip.SUBSCRIBE) {
			return nil, sip.ErrInvalidArg
		}
	}

	var fhdr, thdr, chdr *sip.Header
	if typ == UAS {
		if method == sip.NOTIFY {
			fhdr = resp.GetHeader("From", nil)
			thdr = resp.GetHeader("To", nil)
		} else {
			fhdr = resp.GetHeader("To", nil)
			thdr = resp.GetHeader("From", nil)
		}
		chdr = req.GetHeader("Contact", nil)
	} else {
		if method == sip.NOTIFY {
			thdr = resp.GetHeader("From", nil)
			fhdr = resp.GetHeader("To", nil)
		} else {
			fhdr = resp.GetHeader("From", nil)
			thdr = resp.GetHeader("To", nil)
		}
		chdr = resp.GetHeader("Contact", nil)
	}
	cihdr := resp.GetHeader("Call-ID", nil)
	if fhdr == nil || thdr == nil || cihdr == nil || chdr == nil {
		return nil, sip.ErrInvalidArg
	}

	fromTag, err := resp.FromTag()
	if err != nil || fromTag == nil {
		return nil, sip.ErrInvalidArg
	}
	toTag, err := resp.ToTag()
	if err != nil || toTag == nil {
		return nil, sip.ErrInvalidArg
	}
	cseq, err := resp.CSeqNum()
	if err != nil || cseq < 0 {
		return nil, sip.ErrInvalidArg
	}
	callID, err := resp.CallID()
	if err != nil || callID == nil {
		return nil, sip.ErrInvalidArg
	}

	d := &Dialog{
		reg:       r,
		dtype:     typ,
		localCSeq: cseq,
	}
	d.method = method
	if method == sip.NOTIFY {
		d.method = sip.SUBSCRIBE
	}
	d.remoteURITag = thdr.Dup()
	d.localURITag = fhdr.Dup()
	d.remoteTarget = chdr.Dup()
	d.callID = cihdr.Dup()

	if err := r.computeRouteSet(d, resp, typ); err != nil {
		return nil, err
	}

	// digest order is (local-tag, remote-tag, call-id) from this
	// endpoint's perspective, matching Find on later messages
	if typ == UAS {
		d.id = md5Digest(toTag, fromTag, callID)
	} else {
		d.id = md5Digest(fromTag, toTag, callID)
	}

	prev := d.state
	if code >= 100 && code < 200 {
		d.state = StateEarly
	} else {
		d.state = StateConfirmed
	}

	d.refcnt = 2 // caller + full-table membership
	r.full.add(d)

	r.stateChanged(d, resp, prev, d.state)
	return d, nil
}

// Process validates and applies a mid-dialog message. A request whose
// CSeq decreases below the recorded remote sequence number is rejected
// with ErrBadProtocol and leaves the dialog untouched. A 2xx response to
// an INVITE while EARLY confirms the dialog and recomputes the route set.
func (r *Registry) Process(msg *sip.Message, d *Dialog, fn CompletionFunc) error {
	_ = fn
	isReq, err := msg.IsRequest()
	if err != nil || d == nil {
		return sip.ErrInvalidArg
	}
	if isReq {
		cseq, err := msg.CSeqNum()
		if err != nil {
			return sip.ErrBadProtocol
		}
		d.mu.Lock()
		if d.remoteCSeq != 0 && cseq < d.remoteCSeq {
			d.mu.Unlock()
			return sip.ErrBadProtocol
		}
		d.remoteCSeq = cseq
		d.mu.Unlock()
		return nil
	}

	code, err := msg.ResponseCode()
	if err != nil {
		return err
	}
	method, err := msg.CSeqMethod()
	if err != nil {
		return err
	}
	if code >= 200 && code < 300 && method == sip.INVITE {
		d.mu.Lock()
		if d.state == StateEarly {
			d.state = StateConfirmed
			d.mu.Unlock()
			r.recomputeRouteSet(d, msg, d.dtype)
			r.stateChanged(d, msg, StateEarly, StateConfirmed)
			return nil
		}
		d.mu.Unlock()
	}
	return nil
}

// copyPartialDialog deep-copies a forking seed so one completion can
// proceed while the original keeps accepting forks.
func copyPartialDialog(d *Dialog) *Dialog {
	nd := &Dialog{
		reg:       d.reg,
		dtype:     d.dtype,
		method:    d.method,
		localCSeq: d.localCSeq,
		onFork:    false,
		refcnt:    1, // caller
	}
	if d.localURITag != nil {
		nd.localURITag = d.localURITag.Dup()
	}
	if d.remoteTarget != nil {
		nd.remoteTarget = d.remoteTarget.Dup()
	}
	if d.callID != nil {
		nd.callID = d.callID.Dup()
	}
	if d.event != nil {
		nd.event = d.event.Dup()
	}
	if d.reqURI != nil {
		nd.reqURI = append([]byte(nil), d.reqURI...)
	}
	if d.routeSet != nil {
		nd.rset = append([]byte(nil), d.rset...)
		nd.routeSet = d.routeSet.Dup()
	}
	return nd
}

// Update drives a dialog with a subsequent message carrying it.
// CONFIRMED dialogs accept silently; an EARLY dialog confirms on 2xx; a
// NEW UAC dialog completes, forking first when the seed allows it. The
// returned dialog may differ from the input when a fork was taken: the
// caller's reference moves to the returned dialog.
func (r *Registry) Update(d *Dialog, msg *sip.Message, fn CompletionFunc) (*Dialog, error) {
	if d == nil || msg == nil {
		return d, sip.ErrInvalidArg
	}
	isReq, err := msg.IsRequest()
	if err != nil {
		return d, sip.ErrInvalidArg
	}
	code := 0
	if isReq {
		method, err := msg.RequestMethod()
		if err != nil || d.method != sip.SUBSCRIBE || method != sip.NOTIFY {
			return d, nil
		}
	} else {
		code, err = msg.ResponseCode()
		if err != nil {
			return d, nil
		}
	}

	d.mu.Lock()
	switch d.state {
	case StateConfirmed:
		d.mu.Unlock()
		return d, nil

	case StateEarly:
		if code >= 200 && code < 300 {
			d.state = StateConfirmed
			d.mu.Unlock()
			r.recomputeRouteSet(d, msg, d.dtype)
			r.stateChanged(d, msg, StateEarly, StateConfirmed)
			return d, nil
		}
		// the caller decides termination on a failure response
		d.mu.Unlock()
		return d, nil

	case StateNew:
		// a SUBSCRIBE dialog completes on NOTIFY, not on non-failure
		// responses: those keep the partial dialog in place
		if !isReq && d.method == sip.SUBSCRIBE && code < 300 {
			d.mu.Unlock()
			return d, nil
		}
		target := d
		if d.dtype == UAC {
			if d.onFork {
				nd := copyPartialDialog(d)
				d.mu.Unlock()
				// the caller's reference moves to the copy
				d.unref()
				target = nd
			} else {
				d.timer.cancel()
				d.mu.Unlock()
			}
		} else {
			d.mu.Unlock()
		}
		completed, err := r.Complete(msg, target, fn)
		if completed == nil {
			return nil, err
		}
		return completed, nil
	}

	d.mu.Unlock()
	return d, nil
}

// selfDestruct fires when the partial-dialog timer expires: the dialog
// leaves NEW for DESTROYED, a UAC dialog leaves the partial table and the
// completion function runs with a nil message.
func (r *Registry) selfDestruct(d *Dialog, fn CompletionFunc) {
	d.mu.Lock()
	if d.state != StateNew {
		// a completion won the race
		d.mu.Unlock()
		return
	}
	d.state = StateDestroyed
	d.mu.Unlock()

	dropMembership := d.dtype == UAC && r.partial.remove(d)
	if r.metrics != nil {
		r.metrics.destroyed.Inc()
	}
	r.log.Debug().Dur("timeout", 64*connTimer1(d.conn)).Msg("partial dialog timed out")
	if fn != nil {
		fn(d, nil)
	}
	if dropMembership {
		d.unref()
	}
}

// bytesEqualFold compares ASCII case-insensitively.
func bytesEqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func bytesEqualFoldStr(a []byte, s string) bool {
	return bytesEqualFold(a, []byte(s))
}
