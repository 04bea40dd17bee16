package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectChannel    = "native_share"
	SubjectManifest   = "native_share.manifest"
	SubjectSheet      = "native_share.ui.sheet"
	SubjectPermission = "native_share.ui.permission"
	SubjectSavedEvent = "native_share.events.saved"
)

// BuildChannelSubject derives a sub-subject of a channel, e.g. ("native_share", "manifest").
func BuildChannelSubject(channel string, parts ...string) string {
	if len(parts) == 0 {
		return channel
	}
	return fmt.Sprintf("%s.%s", channel, strings.Join(parts, "."))
}

// SafeToken makes s usable as a single subject token.
func SafeToken(s string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return r.Replace(strings.TrimSpace(s))
}
