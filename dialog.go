package vxsip

import (
	"sync"
	"time"

	"github.com/voxaris/vxsip/sip"
)

// DialogState is the dialog lifecycle state. Once destroyed a dialog never
// transitions again.
type DialogState int

const (
	StateNew DialogState = iota
	StateEarly
	StateConfirmed
	StateDestroyed
)

func (s DialogState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateEarly:
		return "EARLY"
	case StateConfirmed:
		return "CONFIRMED"
	case StateDestroyed:
		return "DESTROYED"
	}
	return "UNKNOWN"
}

// DialogType says which side of the dialog this endpoint plays.
type DialogType int

const (
	UAC DialogType = iota
	UAS
)

// defaultT1 is the fallback base retransmission interval; the partial
// dialog timeout is 64*T1.
const defaultT1 = sip.DefaultT1Millis * time.Millisecond

// CompletionFunc is invoked when a partial dialog is destroyed before it
// is established: on timeout, with a nil msg, or on a final failure
// response, with that response. A successful completion does not invoke it.
type CompletionFunc func(d *Dialog, msg *sip.Message)

// StateChangeFunc observes committed state transitions. It runs with no
// dialog or bucket lock held.
type StateChangeFunc func(d *Dialog, msg *sip.Message, prevState, newState DialogState)

// Dialog is one peer-to-peer SIP relationship. All header fields are owned
// copies, independent of the messages they were extracted from.
type Dialog struct {
	mu     sync.Mutex
	refcnt int

	reg *Registry

	id     digest
	state  DialogState
	dtype  DialogType
	method sip.RequestMethod

	localCSeq  int
	remoteCSeq int

	callID       *sip.Header
	localURITag  *sip.Header
	remoteURITag *sip.Header
	remoteTarget *sip.Header
	routeSet     *sip.Header
	event        *sip.Header

	// rset is the printable route set; reqURI the strict-routing target
	rset   []byte
	reqURI []byte

	onFork bool
	timer  dialogTimer
	conn   Connection
}

// ID returns the dialog digest.
func (d *Dialog) ID() [16]byte { return d.id }

// State returns the current state.
func (d *Dialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Type returns UAC or UAS.
func (d *Dialog) Type() DialogType { return d.dtype }

// Method returns the dialog-establishing method, INVITE or SUBSCRIBE.
func (d *Dialog) Method() sip.RequestMethod { return d.method }

// LocalCSeq returns the last local sequence number.
func (d *Dialog) LocalCSeq() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.localCSeq
}

// RemoteCSeq returns the last remote sequence number.
func (d *Dialog) RemoteCSeq() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteCSeq
}

// RouteSet returns the printable route set, empty when none was recorded.
func (d *Dialog) RouteSet() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.rset)
}

// RouteHeader returns the Route header to place on the next in-dialog
// request, nil when the route set is empty.
func (d *Dialog) RouteHeader() *sip.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.routeSet
}

// ReqURI returns the Request-URI for the next in-dialog request as an
// owned string: the first strict-routing hop when one exists, otherwise
// the remote target.
func (d *Dialog) ReqURI() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.routeSet == nil || d.reqURI == nil {
		v, err := d.remoteTarget.Value()
		if err != nil || v == nil {
			return "", sip.ErrInvalidArg
		}
		return string(v.URI), nil
	}
	return string(d.reqURI), nil
}

// Hold adds a caller reference.
func (d *Dialog) Hold() {
	d.mu.Lock()
	d.refcnt++
	d.mu.Unlock()
}

// Release drops a caller reference; the last drop frees the dialog's
// owned resources.
func (d *Dialog) Release() { d.unref() }

func (d *Dialog) unref() {
	d.mu.Lock()
	d.refcnt--
	last := d.refcnt <= 0
	d.mu.Unlock()
	if last {
		d.freeResources()
	}
}

// freeResources cancels any pending timer and drops the connection hold.
// Reached only once the refcount hit zero.
func (d *Dialog) freeResources() {
	if d.timer.isRunning() {
		d.timer.cancel()
	}
	if d.conn != nil {
		d.conn.Unref()
		d.conn = nil
	}
	if d.reg != nil && d.reg.metrics != nil {
		d.reg.metrics.released.Inc()
	}
}

// tagOf pulls the tag parameter from one of the stored tag-bearing headers.
func tagOf(h *sip.Header) []byte {
	tag, err := sip.HeaderTag(h)
	if err != nil {
		return nil
	}
	return tag
}

// callIDBytes returns the stored Call-ID value.
func (d *Dialog) callIDBytes() []byte {
	if d.callID == nil {
		return nil
	}
	v, err := d.callID.Value()
	if err != nil || v == nil {
		return nil
	}
	return v.Str
}
