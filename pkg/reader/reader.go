// Package reader carries card reader observations into the rest of the
// client. The actual smart-card integration is platform specific and
// plugs in behind the Source interface; everything downstream only sees
// the event stream.
package reader

// CardState describes what the reader currently holds.
type CardState string

const (
	CardAbsent   CardState = "absent"
	CardPresent  CardState = "present"
	CardReadable CardState = "readable"
)

// Event is one observation from a card reader.
type Event struct {
	ReaderName string
	State      CardState
	// CardNumber, ICCID and Expiry are populated once the card answered
	// the identification APDUs, i.e. State is CardReadable.
	CardNumber string
	ICCID      string
	Expiry     string
	// Online and Authenticated reflect the reader's session with the
	// card, not the bridge's own credential state.
	Online        bool
	Authenticated bool
}

// Source emits reader events until closed.
type Source interface {
	Events() <-chan Event
	Close() error
}

// ChannelSource is a Source fed by the caller. The daemon uses it for
// tests and as the adapter point for platform reader backends.
type ChannelSource struct {
	ch chan Event
}

func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{ch: make(chan Event, buffer)}
}

func (s *ChannelSource) Events() <-chan Event {
	return s.ch
}

// Emit delivers an event to consumers. It must not be called after Close.
func (s *ChannelSource) Emit(ev Event) {
	s.ch <- ev
}

func (s *ChannelSource) Close() error {
	close(s.ch)
	return nil
}
