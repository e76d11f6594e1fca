package vxsip

import (
	"crypto/md5"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxaris/vxsip/fakes"
	"github.com/voxaris/vxsip/sip"
	"github.com/voxaris/vxsip/siptest"
)

func parseMsg(t *testing.T, raw []byte) *sip.Message {
	t.Helper()
	msg, err := sip.ParseMessage(raw)
	require.NoError(t, err)
	return msg
}

func uacInvite(t *testing.T) *sip.Message {
	return parseMsg(t, siptest.NewRequest("INVITE", "sip:bob@h2").
		Header("Via", "SIP/2.0/UDP h1;branch=z9hG4bK1").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE").
		Header("Contact", "<sip:alice@h1>").
		Bytes())
}

func inviteOK(t *testing.T, rr string) *sip.Message {
	b := siptest.NewResponse(200, "OK").
		Header("Via", "SIP/2.0/UDP h1;branch=z9hG4bK1").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>;tag=bob").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE")
	if rr != "" {
		b.Header("Record-Route", rr)
	}
	b.Header("Contact", "<sip:bob@h2>")
	return parseMsg(t, b.Bytes())
}

type stateRecorder struct {
	mu          sync.Mutex
	transitions [][2]DialogState
}

func (sr *stateRecorder) callback() StateChangeFunc {
	return func(d *Dialog, msg *sip.Message, prev, cur DialogState) {
		sr.mu.Lock()
		sr.transitions = append(sr.transitions, [2]DialogState{prev, cur})
		sr.mu.Unlock()
	}
}

func (sr *stateRecorder) last() ([2]DialogState, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if len(sr.transitions) == 0 {
		return [2]DialogState{}, false
	}
	return sr.transitions[len(sr.transitions)-1], true
}

func TestSeedThenConfirmUAC(t *testing.T) {
	sr := &stateRecorder{}
	reg := NewRegistry(WithStateCallback(sr.callback()))

	d, err := reg.Seed(nil, uacInvite(t), nil, false, UAC)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, StateNew, d.State())
	assert.Equal(t, UAC, d.Type())
	assert.Equal(t, sip.INVITE, d.Method())
	assert.Equal(t, 42, d.LocalCSeq())

	// partial id is md5(local-tag, call-id)
	assert.Equal(t, [16]byte(md5.Sum([]byte("alicec1"))), d.ID())
	assert.Equal(t, 1, reg.partial.count())

	resp := inviteOK(t, "")
	d2, err := reg.Update(d, resp, nil)
	require.NoError(t, err)
	require.Same(t, d, d2)
	assert.Equal(t, StateConfirmed, d.State())

	// full id is md5(local-tag, remote-tag, call-id)
	assert.Equal(t, [16]byte(md5.Sum([]byte("alicebobc1"))), d.ID())
	assert.Equal(t, 0, reg.partial.count())
	assert.Equal(t, 1, reg.full.count())

	// no Record-Route: the remote target is the Request-URI, no Route set
	uri, err := d.ReqURI()
	require.NoError(t, err)
	assert.Equal(t, "sip:bob@h2", uri)
	assert.Empty(t, d.RouteSet())
	assert.Nil(t, d.RouteHeader())

	last, ok := sr.last()
	require.True(t, ok)
	assert.Equal(t, [2]DialogState{StateNew, StateConfirmed}, last)

	// the completed dialog is matched by later messages
	found := reg.Find(resp)
	require.Same(t, d, found)
	found.Release()
	d.Release()
}

func TestLooseRouting(t *testing.T) {
	reg := NewRegistry()
	d, err := reg.Seed(nil, uacInvite(t), nil, false, UAC)
	require.NoError(t, err)

	resp := inviteOK(t, "<sip:p1@r1;lr>, <sip:p2@r2;lr>")
	_, err = reg.Update(d, resp, nil)
	require.NoError(t, err)

	// UAC takes the Record-Route values in reverse
	assert.Equal(t, "<sip:p2@r2;lr>,<sip:p1@r1;lr>", d.RouteSet())

	rh := d.RouteHeader()
	require.NotNil(t, rh)
	assert.Equal(t, "Route: <sip:p2@r2;lr>,<sip:p1@r1;lr>,<sip:bob@h2>\r\n", string(rh.Bytes()))

	// loose routing keeps the remote target in the Request-URI
	uri, err := d.ReqURI()
	require.NoError(t, err)
	assert.Equal(t, "sip:bob@h2", uri)
	d.Release()
}

func TestStrictRouting(t *testing.T) {
	reg := NewRegistry()
	d, err := reg.Seed(nil, uacInvite(t), nil, false, UAC)
	require.NoError(t, err)

	resp := inviteOK(t, "<sip:p1@r1>, <sip:p2@r2>")
	_, err = reg.Update(d, resp, nil)
	require.NoError(t, err)

	// the first hop has no lr: it becomes the Request-URI and the Route
	// header carries the rest with the remote target appended
	uri, err := d.ReqURI()
	require.NoError(t, err)
	assert.Equal(t, "sip:p2@r2", uri)

	rh := d.RouteHeader()
	require.NotNil(t, rh)
	assert.Equal(t, "Route: <sip:p1@r1>,<sip:bob@h2>\r\n", string(rh.Bytes()))
	d.Release()
}

func TestRejectedResponseDestroysPartial(t *testing.T) {
	sr := &stateRecorder{}
	reg := NewRegistry(WithStateCallback(sr.callback()))

	var cbDialog *Dialog
	var cbMsg *sip.Message
	fn := func(d *Dialog, msg *sip.Message) {
		cbDialog = d
		cbMsg = msg
	}

	d, err := reg.Seed(nil, uacInvite(t), fn, false, UAC)
	require.NoError(t, err)

	notFound := parseMsg(t, siptest.NewResponse(404, "Not Found").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>;tag=bob").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE").
		Bytes())

	got, err := reg.Update(d, notFound, fn)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, StateDestroyed, d.State())
	assert.Same(t, d, cbDialog)
	assert.NotNil(t, cbMsg)
	last, ok := sr.last()
	require.True(t, ok)
	assert.Equal(t, [2]DialogState{StateNew, StateDestroyed}, last)

	assert.Equal(t, 0, reg.partial.count())
	assert.Equal(t, 0, reg.full.count())
	d.Release()
}

func subscribeReq(t *testing.T) *sip.Message {
	return parseMsg(t, siptest.NewRequest("SUBSCRIBE", "sip:bob@h2").
		Header("Via", "SIP/2.0/UDP h1;branch=z9hG4bK9").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>").
		Header("Call-ID", "c9").
		Header("CSeq", "5 SUBSCRIBE").
		Header("Contact", "<sip:alice@h1>").
		Header("Event", "presence").
		Bytes())
}

func notifyReq(t *testing.T, substate string) *sip.Message {
	return parseMsg(t, siptest.NewRequest("NOTIFY", "sip:alice@h1").
		Header("Via", "SIP/2.0/UDP h2;branch=z9hG4bKn").
		Header("From", "Bob <sip:bob@h2>;tag=srv").
		Header("To", "Alice <sip:alice@h1>;tag=alice").
		Header("Call-ID", "c9").
		Header("CSeq", "1 NOTIFY").
		Header("Contact", "<sip:bob@h2>").
		Header("Event", "presence").
		Header("Subscription-State", substate).
		Bytes())
}

func TestSubscribeNotify(t *testing.T) {
	reg := NewRegistry()
	d, err := reg.Seed(nil, subscribeReq(t), nil, false, UAC)
	require.NoError(t, err)

	// a 202 keeps the dialog partial: SUBSCRIBE completes on NOTIFY
	accepted := parseMsg(t, siptest.NewResponse(202, "Accepted").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>;tag=srv").
		Header("Call-ID", "c9").
		Header("CSeq", "5 SUBSCRIBE").
		Bytes())
	got, err := reg.Update(d, accepted, nil)
	require.NoError(t, err)
	require.Same(t, d, got)
	assert.Equal(t, StateNew, d.State())
	assert.Equal(t, 1, reg.partial.count())

	// active NOTIFY with matching Event completes it
	got, err = reg.Update(d, notifyReq(t, "active"), nil)
	require.NoError(t, err)
	require.Same(t, d, got)
	assert.Equal(t, StateConfirmed, d.State())
	assert.Equal(t, [16]byte(md5.Sum([]byte("alicesrvc9"))), d.ID())
	assert.Equal(t, 1, reg.full.count())
	d.Release()
}

func TestNotifyTerminatedRejected(t *testing.T) {
	reg := NewRegistry()
	d, err := reg.Seed(nil, subscribeReq(t), nil, false, UAC)
	require.NoError(t, err)

	got, err := reg.Complete(notifyReq(t, "terminated"), d, nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, sip.ErrInvalidArg)
	assert.Equal(t, StateNew, d.State())
	d.Release()
}

func TestNotifyEventIDMismatchRejected(t *testing.T) {
	reg := NewRegistry()
	d, err := reg.Seed(nil, subscribeReq(t), nil, false, UAC)
	require.NoError(t, err)

	mismatch := parseMsg(t, siptest.NewRequest("NOTIFY", "sip:alice@h1").
		Header("From", "Bob <sip:bob@h2>;tag=srv").
		Header("To", "Alice <sip:alice@h1>;tag=alice").
		Header("Call-ID", "c9").
		Header("CSeq", "1 NOTIFY").
		Header("Event", "presence;id=42").
		Header("Subscription-State", "active").
		Bytes())
	got, err := reg.Complete(mismatch, d, nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, sip.ErrInvalidArg)
	assert.Equal(t, StateNew, d.State())
	d.Release()
}

func TestForking(t *testing.T) {
	reg := NewRegistry()
	seed, err := reg.Seed(&fakes.Connection{T1: 20 * time.Millisecond}, uacInvite(t), nil, true, UAC)
	require.NoError(t, err)

	resp1 := parseMsg(t, siptest.NewResponse(200, "OK").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>;tag=bob1").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE").
		Header("Contact", "<sip:bob@fork1>").
		Bytes())

	d1, err := reg.Update(seed, resp1, nil)
	require.NoError(t, err)
	require.NotNil(t, d1)
	assert.NotSame(t, seed, d1)
	assert.Equal(t, StateConfirmed, d1.State())
	assert.Equal(t, [16]byte(md5.Sum([]byte("alicebob1c1"))), d1.ID())

	// the seed keeps accepting forks
	assert.Equal(t, StateNew, seed.State())
	assert.Equal(t, 1, reg.partial.count())

	resp2 := parseMsg(t, siptest.NewResponse(200, "OK").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>;tag=bob2").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE").
		Header("Contact", "<sip:bob@fork2>").
		Bytes())

	// a second fork arrives matched through the partial table
	again := reg.Find(resp2)
	require.NotNil(t, again)
	d2, err := reg.Update(again, resp2, nil)
	require.NoError(t, err)
	require.NotNil(t, d2)
	assert.Equal(t, StateConfirmed, d2.State())
	assert.Equal(t, [16]byte(md5.Sum([]byte("alicebob2c1"))), d2.ID())

	assert.Equal(t, 2, reg.full.count())
	assert.Equal(t, 1, reg.partial.count())

	// each fork carries its own remote target
	u1, err := d1.ReqURI()
	require.NoError(t, err)
	u2, err := d2.ReqURI()
	require.NoError(t, err)
	assert.Equal(t, "sip:bob@fork1", u1)
	assert.Equal(t, "sip:bob@fork2", u2)

	// the partial self-destructs on timeout
	require.Eventually(t, func() bool {
		return reg.partial.count() == 0 && seed.State() == StateDestroyed
	}, 5*time.Second, 10*time.Millisecond)

	d1.Release()
	d2.Release()
}

func TestPartialDialogTimeout(t *testing.T) {
	reg := NewRegistry()
	conn := &fakes.Connection{T1: time.Millisecond}

	var mu sync.Mutex
	var timedOut bool
	var cbMsg *sip.Message = parseMsg(t, siptest.NewResponse(100, "Trying").Bytes())
	fn := func(d *Dialog, msg *sip.Message) {
		mu.Lock()
		timedOut = true
		cbMsg = msg
		mu.Unlock()
	}

	d, err := reg.Seed(conn, uacInvite(t), fn, false, UAC)
	require.NoError(t, err)
	assert.Equal(t, 1, conn.Refs())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return timedOut
	}, 5*time.Second, 5*time.Millisecond)

	// the completion function runs with a nil message on timeout
	mu.Lock()
	assert.Nil(t, cbMsg)
	mu.Unlock()
	assert.Equal(t, StateDestroyed, d.State())
	assert.Equal(t, 0, reg.partial.count())

	d.Release()
	// the last drop returns the connection hold
	assert.Equal(t, 0, conn.Refs())
}

func TestProcessCSeqDecreaseRejected(t *testing.T) {
	reg := NewRegistry()
	d, err := reg.Seed(nil, uacInvite(t), nil, false, UAC)
	require.NoError(t, err)
	_, err = reg.Update(d, inviteOK(t, ""), nil)
	require.NoError(t, err)

	bye := parseMsg(t, siptest.NewRequest("BYE", "sip:alice@h1").
		Header("From", "Bob <sip:bob@h2>;tag=bob").
		Header("To", "Alice <sip:alice@h1>;tag=alice").
		Header("Call-ID", "c1").
		Header("CSeq", "50 BYE").
		Bytes())
	require.NoError(t, reg.Process(bye, d, nil))
	assert.Equal(t, 50, d.RemoteCSeq())

	stale := parseMsg(t, siptest.NewRequest("INFO", "sip:alice@h1").
		Header("From", "Bob <sip:bob@h2>;tag=bob").
		Header("To", "Alice <sip:alice@h1>;tag=alice").
		Header("Call-ID", "c1").
		Header("CSeq", "41 INFO").
		Bytes())
	assert.ErrorIs(t, reg.Process(stale, d, nil), sip.ErrBadProtocol)

	// the dialog is untouched by the rejected request
	assert.Equal(t, 50, d.RemoteCSeq())
	assert.Equal(t, StateConfirmed, d.State())
	d.Release()
}

func TestSeedRejectsNonDialogMethods(t *testing.T) {
	reg := NewRegistry()
	opts := parseMsg(t, siptest.NewRequest("OPTIONS", "sip:bob@h2").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>").
		Header("Call-ID", "c1").
		Header("CSeq", "1 OPTIONS").
		Header("Contact", "<sip:alice@h1>").
		Bytes())
	_, err := reg.Seed(nil, opts, nil, false, UAC)
	assert.ErrorIs(t, err, sip.ErrInvalidArg)

	// responses cannot seed
	_, err = reg.Seed(nil, inviteOK(t, ""), nil, false, UAC)
	assert.ErrorIs(t, err, sip.ErrInvalidArg)
}

func TestSeedRequiresTagAndContact(t *testing.T) {
	reg := NewRegistry()
	noTag := parseMsg(t, siptest.NewRequest("INVITE", "sip:bob@h2").
		Header("From", "Alice <sip:alice@h1>").
		Header("To", "Bob <sip:bob@h2>").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE").
		Header("Contact", "<sip:alice@h1>").
		Bytes())
	_, err := reg.Seed(nil, noTag, nil, false, UAC)
	assert.ErrorIs(t, err, sip.ErrInvalidArg)

	noContact := parseMsg(t, siptest.NewRequest("INVITE", "sip:bob@h2").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE").
		Bytes())
	_, err = reg.Seed(nil, noContact, nil, false, UAC)
	assert.ErrorIs(t, err, sip.ErrInvalidArg)
}

func TestCreateUASDialog(t *testing.T) {
	reg := NewRegistry()

	req := uacInvite(t)
	resp := parseMsg(t, siptest.NewResponse(200, "OK").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>;tag=bob").
		Header("Call-ID", "c1").
		Header("CSeq", "42 INVITE").
		Header("Contact", "<sip:bob@h2>").
		Bytes())

	d, err := reg.Create(resp, req, UAS)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, StateConfirmed, d.State())
	assert.Equal(t, UAS, d.Type())

	// a mid-dialog request from the peer is matched
	bye := parseMsg(t, siptest.NewRequest("BYE", "sip:bob@h2").
		Header("From", "Alice <sip:alice@h1>;tag=alice").
		Header("To", "Bob <sip:bob@h2>;tag=bob").
		Header("Call-ID", "c1").
		Header("CSeq", "43 BYE").
		Bytes())
	found := reg.Find(bye)
	require.Same(t, d, found)
	found.Release()

	reg.Terminate(d, nil)
	assert.Equal(t, StateDestroyed, d.State())
	reg.Delete(d)
	assert.Equal(t, 0, reg.full.count())
}

func TestTerminateIsTerminal(t *testing.T) {
	sr := &stateRecorder{}
	reg := NewRegistry(WithStateCallback(sr.callback()))
	d, err := reg.Seed(nil, uacInvite(t), nil, false, UAC)
	require.NoError(t, err)
	_, err = reg.Update(d, inviteOK(t, ""), nil)
	require.NoError(t, err)

	reg.Terminate(d, nil)
	assert.Equal(t, StateDestroyed, d.State())

	// destroyed dialogs stop matching
	assert.Nil(t, reg.Find(inviteOK(t, "")))

	// once destroyed, further updates never resurrect it
	got, err := reg.Update(d, inviteOK(t, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDestroyed, got.State())

	reg.Delete(d)
	assert.Equal(t, 0, reg.full.count())
}

func TestUASSeedCompleteWithOwnResponse(t *testing.T) {
	reg := NewRegistry()

	// UAS side: the incoming INVITE seeds, our tagged 200 completes
	d, err := reg.Seed(nil, uacInvite(t), nil, false, UAS)
	require.NoError(t, err)
	assert.Equal(t, UAS, d.Type())
	assert.Equal(t, 42, d.RemoteCSeq())
	// UAS partial dialogs are not indexed
	assert.Equal(t, 0, reg.partial.count())

	resp := inviteOK(t, "")
	got, err := reg.Complete(resp, d, nil)
	require.NoError(t, err)
	require.Same(t, d, got)
	assert.Equal(t, StateConfirmed, d.State())
	// (local-tag, remote-tag, call-id) from the UAS perspective
	assert.Equal(t, [16]byte(md5.Sum([]byte("bobalicec1"))), d.ID())
	d.Release()
}
