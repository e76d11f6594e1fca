package vxsip

import (
	"crypto/md5"
	"encoding/binary"
	"sync"
)

// hashSize is the bucket count of each dialog table.
const hashSize = 128

// digest identifies a dialog: MD5 over (local-tag, remote-tag, call-id)
// for full dialogs, (local-tag, call-id) for UAC partial dialogs.
type digest [md5.Size]byte

// md5Digest hashes the concatenation of the given parts. Nil parts are
// permitted and contribute nothing.
func md5Digest(parts ...[]byte) digest {
	h := md5.New()
	for _, p := range parts {
		if p != nil {
			h.Write(p)
		}
	}
	var d digest
	copy(d[:], h.Sum(nil))
	return d
}

func (d digest) bucket() int {
	return int(binary.BigEndian.Uint32(d[:4]) % hashSize)
}

// hashBucket is one bucket: an entry list behind its own mutex.
type hashBucket struct {
	mu    sync.Mutex
	items []*Dialog
}

// dialogTable is a fixed-size bucketed index of dialogs. Membership holds
// one dialog reference; the per-bucket lock is always taken before any
// per-dialog lock.
type dialogTable struct {
	buckets [hashSize]hashBucket
}

// add inserts the dialog under its current id. The caller accounts for the
// membership reference.
func (t *dialogTable) add(d *Dialog) {
	b := &t.buckets[d.id.bucket()]
	b.mu.Lock()
	b.items = append(b.items, d)
	b.mu.Unlock()
}

// find looks an id up. A match that is not destroyed gains a reference for
// the caller.
func (t *dialogTable) find(id digest) *Dialog {
	b := &t.buckets[id.bucket()]
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.items {
		d.mu.Lock()
		if d.state != StateDestroyed && d.id == id {
			d.refcnt++
			d.mu.Unlock()
			return d
		}
		d.mu.Unlock()
	}
	return nil
}

// remove unlinks the dialog, returning whether it was a member. The caller
// drops the membership reference on true.
func (t *dialogTable) remove(d *Dialog) bool {
	b := &t.buckets[d.id.bucket()]
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, it := range b.items {
		if it == d {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// count reports the total entries across buckets.
func (t *dialogTable) count() int {
	n := 0
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		n += len(b.items)
		b.mu.Unlock()
	}
	return n
}
