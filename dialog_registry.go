package vxsip

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voxaris/vxsip/sip"
)

// Registry indexes live dialogs: the full table keyed by
// (local-tag, remote-tag, call-id) digests and the partial table holding
// UAC dialogs awaiting their first tag-bearing response, keyed by
// (local-tag, call-id). A dialog lives in at most one table at a time and
// table membership holds one reference.
type Registry struct {
	full    dialogTable
	partial dialogTable

	onStateChange StateChangeFunc
	log           zerolog.Logger
	metrics       *dialogMetrics
}

// RegistryOption customizes NewRegistry.
type RegistryOption func(r *Registry)

// WithStateCallback installs the state-change observer.
func WithStateCallback(fn StateChangeFunc) RegistryOption {
	return func(r *Registry) {
		r.onStateChange = fn
	}
}

// WithLogger overrides the registry logger.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = logger
	}
}

// WithMetrics registers dialog collectors against pr.
func WithMetrics(pr prometheus.Registerer) RegistryOption {
	return func(r *Registry) {
		r.metrics = newDialogMetrics(r, pr)
	}
}

// NewRegistry creates an empty dialog registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		log: log.Logger,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// stateChanged commits bookkeeping and fires the observer with no locks
// held.
func (r *Registry) stateChanged(d *Dialog, msg *sip.Message, prev, cur DialogState) {
	if r.metrics != nil {
		switch cur {
		case StateEarly, StateConfirmed:
			if prev == StateNew || prev == StateEarly {
				r.metrics.completed.Inc()
			}
		case StateDestroyed:
			r.metrics.destroyed.Inc()
		}
	}
	if r.onStateChange != nil {
		r.onStateChange(d, msg, prev, cur)
	}
}

// Find matches an incoming message against the registry. The digest is
// computed from (local-tag, remote-tag, call-id), local and remote picked
// by message direction; a miss retries the partial table with
// (local-tag, call-id). A returned dialog carries a reference the caller
// must Release.
func (r *Registry) Find(msg *sip.Message) *Dialog {
	isReq, err := msg.IsRequest()
	if err != nil {
		return nil
	}

	var localTag, remoteTag []byte
	if isReq {
		localTag, err = msg.ToTag()
		if err == nil {
			remoteTag, err = msg.FromTag()
		}
	} else {
		remoteTag, err = msg.ToTag()
		if err == nil {
			localTag, err = msg.FromTag()
		}
	}
	if err != nil {
		return nil
	}
	callID, err := msg.CallID()
	if err != nil || localTag == nil || remoteTag == nil || callID == nil {
		return nil
	}

	if d := r.full.find(md5Digest(localTag, remoteTag, callID)); d != nil {
		return d
	}
	// partial dialogs are keyed without the remote tag
	return r.partial.find(md5Digest(localTag, callID))
}

// Terminate transitions the dialog to DESTROYED, fires the observer and
// drops the caller's reference.
func (r *Registry) Terminate(d *Dialog, msg *sip.Message) {
	d.mu.Lock()
	prev := d.state
	d.state = StateDestroyed
	d.mu.Unlock()
	if prev != StateDestroyed {
		r.stateChanged(d, msg, prev, StateDestroyed)
	}
	d.unref()
}

// Delete removes a destroyed dialog from the full table, dropping the
// membership reference. The object is freed once every outstanding handle
// is released.
func (r *Registry) Delete(d *Dialog) {
	d.mu.Lock()
	destroyed := d.state == StateDestroyed
	d.mu.Unlock()
	if !destroyed {
		return
	}
	if r.full.remove(d) {
		d.unref()
	}
}
