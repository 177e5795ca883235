package core

// Tag selects the routing policy a consumer applies to an envelope.
type Tag int

const (
	// TagGlobal delivers to every connected user except the origin.
	TagGlobal Tag = iota
	// TagRoom delivers to current members of Room, except the origin.
	TagRoom
	// TagPrivate delivers only to the connection whose address matches Recipient.
	TagPrivate
	// TagSystem delivers server notices to everyone except the origin.
	TagSystem
)

// Envelope is the routed message unit carried by the bus. The bus has no
// notion of recipients; each consumer decides delivery from Tag and Origin.
type Envelope struct {
	Tag       Tag
	Room      string // room name, set for TagRoom
	Recipient string // recipient address, set for TagPrivate
	Origin    string // address of the originating connection
	Text      string // formatted line, no trailing newline
}
