package protocol

import (
	"fmt"
	"strings"
)

// EncodeQuery returns the query datagram.
func EncodeQuery() []byte {
	return []byte(QueryTag)
}

// EncodeNotification writes n as "boop <sender>" or "boop <sender>-><recipient>".
func EncodeNotification(n Notification) ([]byte, error) {
	if n.Sender == "" || strings.Contains(n.Sender, Separator) {
		return nil, fmt.Errorf("%w: sender=%q", ErrInvalidName, n.Sender)
	}
	if n.Targeted && n.Recipient == "" {
		return nil, fmt.Errorf("%w: empty recipient", ErrInvalidName)
	}

	size := len(NotificationPrefix) + len(n.Sender)
	if n.Targeted {
		size += len(Separator) + len(n.Recipient)
	}
	if size > MaxDatagramLen {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrDatagramTooLarge, size, MaxDatagramLen)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, NotificationPrefix...)
	buf = append(buf, n.Sender...)
	if n.Targeted {
		buf = append(buf, Separator...)
		buf = append(buf, n.Recipient...)
	}
	return buf, nil
}

// ValidateName checks that name can be registered by a daemon and later
// travel as the sender of a notification.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	}
	if len(NotificationPrefix)+len(name) > MaxDatagramLen {
		return fmt.Errorf("%w: %d bytes is too long", ErrInvalidName, len(name))
	}
	return nil
}
