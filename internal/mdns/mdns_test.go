package mdns

import (
	"net"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/grandcat/zeroconf"
)

func TestTXTRoundTrip(t *testing.T) {
	records := TXT("Cleo=the cat", "0f8fad5b-d9cb-469f-a165-70867728950e")
	name, id := ParseTXT(records)
	if name != "Cleo=the cat" {
		t.Fatalf("unexpected name: %q", name)
	}
	if id != "0f8fad5b-d9cb-469f-a165-70867728950e" {
		t.Fatalf("unexpected id: %q", id)
	}
}

func TestInstanceLabelFitsDNSLabel(t *testing.T) {
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	if got := instanceLabel("Rex", id); got != "Rex-0f8fad5b" {
		t.Fatalf("unexpected short label: %q", got)
	}
	long := instanceLabel(strings.Repeat("é", 40), id)
	if len(long) > 63 || !utf8.ValidString(long) || !strings.HasSuffix(long, "-0f8fad5b") {
		t.Fatalf("unexpected long label %q (%d bytes)", long, len(long))
	}
}

func TestTXTNameFitsOneString(t *testing.T) {
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	long := strings.Repeat("é", 250)
	for _, rec := range TXT(long, id) {
		if len(rec) > 255 || !utf8.ValidString(rec) {
			t.Fatalf("record exceeds a TXT string (%d bytes) or splits a rune", len(rec))
		}
	}
	name, gotID := ParseTXT(TXT(long, id))
	if !strings.HasPrefix(long, name) || len(name) < 248 || gotID != id {
		t.Fatalf("unexpected parsed record: %d bytes, id %q", len(name), gotID)
	}
	if name, _ := ParseTXT(TXT("Rex", id)); name != "Rex" {
		t.Fatalf("short name changed: %q", name)
	}
}

func TestPeerFromEntryPrefersTXTName(t *testing.T) {
	entry := zeroconf.NewServiceEntry("Rex-0f8fad5b", ServiceType, Domain)
	entry.HostName = "rex-laptop.local."
	entry.Port = 52260
	entry.Text = []string{"txtv=0", "name=Rex", "id=abc"}
	entry.AddrIPv4 = []net.IP{net.IPv4(10, 0, 0, 3)}

	peer := peerFromEntry(entry)
	if peer.Name != "Rex" || peer.InstanceID != "abc" || peer.Host != "rex-laptop.local" {
		t.Fatalf("unexpected peer: %+v", peer)
	}
	if len(peer.Addrs) != 1 || !peer.Addrs[0].Equal(net.IPv4(10, 0, 0, 3)) {
		t.Fatalf("unexpected addrs: %v", peer.Addrs)
	}

	entry.Text = nil
	if peer := peerFromEntry(entry); peer.Name != "Rex-0f8fad5b" {
		t.Fatalf("expected instance fallback, got %q", peer.Name)
	}
}

func TestSortPeers(t *testing.T) {
	peers := sortPeers(map[string]Peer{
		"b/Rex":  {Name: "Rex", InstanceID: "b"},
		"a/Rex":  {Name: "Rex", InstanceID: "a"},
		"c/Cleo": {Name: "Cleo", InstanceID: "c"},
	})
	var got []string
	for _, p := range peers {
		got = append(got, p.Name+"/"+p.InstanceID)
	}
	if strings.Join(got, ",") != "Cleo/c,Rex/a,Rex/b" {
		t.Fatalf("unexpected order: %v", got)
	}
}
