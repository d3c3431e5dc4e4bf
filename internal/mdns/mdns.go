// Package mdns advertises running daemons and lists them for boop --peers.
// Presence is informational only; boops still travel by broadcast.
package mdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const (
	ServiceType = "_boop._udp"
	Domain      = "local."

	txtVersion = "txtv=0"
	keyName    = "name"
	keyID      = "id"
)

var ErrMDNS = errors.New("mdns: presence failed")

// Peer is one daemon seen on the LAN.
type Peer struct {
	Name       string
	InstanceID string
	Host       string
	Port       int
	Addrs      []net.IP
}

// Advertisement is a registered service; Shutdown withdraws it.
type Advertisement struct {
	server *zeroconf.Server
}

func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Advertise registers name on all interfaces until Shutdown.
func Advertise(name string, port int, instanceID string) (*Advertisement, error) {
	server, err := zeroconf.Register(instanceLabel(name, instanceID), ServiceType, Domain, port, TXT(name, instanceID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: register %q: %w", ErrMDNS, name, err)
	}
	log.Info().Str("name", name).Str("service", ServiceType).Msg("mdns: advertising")
	return &Advertisement{server: server}, nil
}

// maxTXTString is the DNS limit for one character-string in a TXT record.
const maxTXTString = 255

// TXT builds the records carrying the name and instance id. A name longer
// than one TXT string allows is cut on a rune boundary; the peer list then
// shows a prefix of it.
func TXT(name, instanceID string) []string {
	nameRec := truncateUTF8(keyName+"="+name, maxTXTString)
	return []string{txtVersion, nameRec, keyID + "=" + instanceID}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// instanceLabel keeps the DNS instance label unique and within 63 bytes;
// the full name travels in TXT.
func instanceLabel(name, instanceID string) string {
	const maxLabel = 63
	suffix := ""
	if len(instanceID) >= 8 {
		suffix = "-" + instanceID[:8]
	}
	return truncateUTF8(name, maxLabel-len(suffix)) + suffix
}

// Browse lists daemons answering within timeout, sorted by name.
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: resolver: %w", ErrMDNS, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("%w: browse: %w", ErrMDNS, err)
	}

	seen := make(map[string]Peer)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return sortPeers(seen), nil
			}
			if entry == nil {
				continue
			}
			peer := peerFromEntry(entry)
			seen[peer.InstanceID+"/"+peer.Name] = peer
		case <-ctx.Done():
			return sortPeers(seen), nil
		}
	}
}

func peerFromEntry(entry *zeroconf.ServiceEntry) Peer {
	name, id := ParseTXT(entry.Text)
	if name == "" {
		name = entry.Instance
	}
	addrs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	addrs = append(addrs, entry.AddrIPv4...)
	addrs = append(addrs, entry.AddrIPv6...)
	return Peer{
		Name:       name,
		InstanceID: id,
		Host:       strings.TrimSuffix(entry.HostName, "."),
		Port:       entry.Port,
		Addrs:      addrs,
	}
}

// ParseTXT extracts the name and instance id records.
func ParseTXT(records []string) (name, instanceID string) {
	for _, rec := range records {
		key, value, ok := strings.Cut(rec, "=")
		if !ok {
			continue
		}
		switch key {
		case keyName:
			name = value
		case keyID:
			instanceID = value
		}
	}
	return name, instanceID
}

func sortPeers(seen map[string]Peer) []Peer {
	out := make([]Peer, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].InstanceID < out[j].InstanceID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
