// Package vxsip tracks SIP dialogs across requests and responses on top of
// the sip message core: it seeds partial dialogs from INVITE and SUBSCRIBE
// requests, completes them against tag-bearing responses, maintains the
// RFC 3261 12.2.1.1 route set and indexes live dialogs for mid-dialog
// message matching.
package vxsip

import (
	"github.com/google/uuid"
)

// GenerateTag returns a locally generated From/To tag.
func GenerateTag() string {
	return uuid.Must(uuid.NewRandom()).String()
}
