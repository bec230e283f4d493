package domain

const MaxDisplayNameLen = 64

// ParticipantRecord is one client's row in the room's participant directory.
// Written only by the owning client, removed on leave or by the directory's
// dead-man's switch when the owner's connection drops.
type ParticipantRecord struct {
	ID           ClientID `json:"id"`
	DisplayName  string   `json:"name"`
	AudioEnabled bool     `json:"isAudioEnabled"`
	VideoEnabled bool     `json:"isVideoEnabled"`
	JoinedAt     int64    `json:"joinedAt"`
}

// ScreenShareRecord exists only while its owner broadcasts a capture.
// At most one per sharer; CreatedAt elects the room-wide active share.
type ScreenShareRecord struct {
	ID           ClientID `json:"id"`
	DisplayName  string   `json:"name"`
	AudioEnabled bool     `json:"isAudioEnabled"`
	CreatedAt    int64    `json:"createdAt"`
}

// ClampDisplayName truncates user supplied names to the directory limit.
func ClampDisplayName(name string) string {
	if len(name) > MaxDisplayNameLen {
		return name[:MaxDisplayNameLen]
	}
	return name
}
