package protocol

// Port is the well-known UDP port shared by every client and daemon (0xCC24).
const Port = 0xCC24

const (
	// QueryTag asks the receiving daemon for its registered name.
	QueryTag = "get-name"
	// NotificationPrefix introduces a boop notification.
	NotificationPrefix = "boop "
	// Separator splits sender and recipient inside a notification.
	Separator = "->"

	// MinDatagramLen is the shortest datagram worth decoding.
	MinDatagramLen = len(NotificationPrefix) + 1
	// MaxDatagramLen bounds every encoded message and receive buffer.
	MaxDatagramLen = 512
)

// Kind tags a decoded datagram.
type Kind uint8

const (
	KindUnrecognized Kind = iota
	KindQuery
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindNotification:
		return "notification"
	default:
		return "unrecognized"
	}
}

// Notification is one boop. Recipient is meaningful only when Targeted is set;
// an untargeted notification is addressed to everyone.
type Notification struct {
	Sender    string
	Recipient string
	Targeted  bool
}

// ToEveryone builds an untargeted notification.
func ToEveryone(sender string) Notification {
	return Notification{Sender: sender}
}

// ToName builds a notification addressed to one recipient.
func ToName(sender, recipient string) Notification {
	return Notification{Sender: sender, Recipient: recipient, Targeted: true}
}

// AddressedTo reports whether a daemon registered as name should react.
func (n Notification) AddressedTo(name string) bool {
	return !n.Targeted || n.Recipient == name
}

// Message is the decoded form of one datagram.
type Message struct {
	Kind         Kind
	Notification Notification
}
