package room

import (
	"strings"

	"github.com/dkeye/Meet/internal/domain"
)

// Initiator reports whether self must start the camera-mesh negotiation
// toward peer. Plain string comparison on opaque ids: both sides compute the
// same winner with no coordination round-trip, the greater id always calls.
// It makes glare structurally rare, not impossible; the offer handler still
// rolls back when two sides race.
func Initiator(self, peer domain.ClientID) bool {
	return string(self) > string(peer)
}

// Session key namespaces, disjoint by construction.

func cameraKey(peer domain.ClientID) string { return string(peer) }

func screenKey(sharer domain.ClientID) string { return string(sharer) + domain.ScreenSuffix }

func viewerKey(viewer string) string { return viewer + domain.ViewerSuffix }

func isCameraKey(key string) bool {
	return !strings.HasSuffix(key, domain.ScreenSuffix) && !strings.HasSuffix(key, domain.ViewerSuffix)
}

func isScreenKey(key string) bool { return strings.HasSuffix(key, domain.ScreenSuffix) }

func isViewerKey(key string) bool { return strings.HasSuffix(key, domain.ViewerSuffix) }

func screenKeyOwner(key string) domain.ClientID {
	return domain.ClientID(strings.TrimSuffix(key, domain.ScreenSuffix))
}

func viewerKeyOwner(key string) domain.ClientID {
	return domain.ClientID(strings.TrimSuffix(key, domain.ViewerSuffix))
}
