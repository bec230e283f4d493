package core

// Participant is one entry of the UI-facing view: a live room member or an
// active screen broadcast. The view is recomputed in full after every
// state-changing event, never patched incrementally, so it is always a pure
// function of the current directory tables and session streams.
type Participant struct {
	ID           string
	DisplayName  string
	Local        bool
	AudioEnabled bool
	VideoEnabled bool
	ScreenShare  bool
	JoinedAt     int64
	// Stream holds the media a session produced for this entry. Nil until
	// the first remote track arrives, and always nil for local entries
	// whose media never crosses a transport.
	Stream *RemoteStream
}
