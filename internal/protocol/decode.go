package protocol

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var unrecognized = Message{Kind: KindUnrecognized}

// Decode classifies one datagram. It never fails: anything that is not a
// well-formed query or notification comes back as KindUnrecognized.
//
// A notification splits on its first "->" only. "boop Bob->Alice->Zed" names
// the recipient "Alice->Zed", which no valid Name can equal, so a payload
// with more than one separator addresses nobody.
func Decode(b []byte) Message {
	if len(b) < MinDatagramLen || !utf8.Valid(b) {
		return unrecognized
	}
	s := string(b)
	if s == QueryTag {
		return Message{Kind: KindQuery}
	}

	rest, ok := strings.CutPrefix(s, NotificationPrefix)
	if !ok {
		return unrecognized
	}
	sender, recipient, targeted := strings.Cut(rest, Separator)
	if sender == "" {
		return unrecognized
	}
	return Message{
		Kind: KindNotification,
		Notification: Notification{
			Sender:    sender,
			Recipient: recipient,
			Targeted:  targeted,
		},
	}
}

// DecodeNameReply reads a daemon's name reply. Each run of invalid UTF-8
// bytes collapses into a single U+FFFD, so "a\xff\xfeb" reads as "a\uFFFDb".
func DecodeNameReply(b []byte) string {
	return string(bytes.ToValidUTF8(b, []byte(string(utf8.RuneError))))
}
