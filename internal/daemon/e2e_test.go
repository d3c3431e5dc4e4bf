package daemon

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Connicpu/boop/internal/client"
	"github.com/Connicpu/boop/internal/testutil/memnet"
	"github.com/Connicpu/boop/internal/testutil/testlog"
)

func TestBoopAcrossSubnet(t *testing.T) {
	testlog.Start(t)

	network := memnet.New()
	cleoHost := network.Host("10.0.0.2")
	cleo := startDaemon(t, cleoHost, "Cleo", PolicyFatal)
	rex := startDaemon(t, network.Host("10.0.0.3"), "Rex", PolicyFatal)
	maxd := startDaemon(t, network.Host("10.0.0.4"), "Max", PolicyFatal)

	c := client.Client{Network: cleoHost, ResolveTimeout: time.Second}

	res, err := c.BoopEveryone(context.Background())
	if err != nil {
		t.Fatalf("boop everyone: %v", err)
	}
	if string(res.Payload) != "boop Cleo" {
		t.Fatalf("unexpected everyone payload: %q", res.Payload)
	}
	for _, h := range []*harness{cleo, rex, maxd} {
		h.query(t)
		if got := h.ann.Texts(); !equalTexts(got, "Cleo is booping everyone!!!") {
			t.Fatalf("%s: unexpected announcements %q", h.daemon.Name(), got)
		}
	}

	res, err = c.BoopName(context.Background(), "Rex")
	if err != nil {
		t.Fatalf("boop rex: %v", err)
	}
	if string(res.Payload) != "boop Cleo->Rex" {
		t.Fatalf("unexpected targeted payload: %q", res.Payload)
	}
	rex.query(t)
	maxd.query(t)
	cleo.query(t)
	if got := rex.ann.Texts(); !equalTexts(got, "Cleo is booping everyone!!!", "Cleo is booping you!") {
		t.Fatalf("rex: unexpected announcements %q", got)
	}
	if got := maxd.ann.Texts(); !equalTexts(got, "Cleo is booping everyone!!!") {
		t.Fatalf("max: targeted boop announced %q", got)
	}
	if got := cleo.ann.Texts(); !equalTexts(got, "Cleo is booping everyone!!!") {
		t.Fatalf("cleo: targeted boop announced %q", got)
	}

	var broadcast []string
	for _, pkt := range network.Sent() {
		if pkt.Dst.IP.Equal(net.IPv4bcast) {
			broadcast = append(broadcast, string(pkt.Payload))
		}
	}
	if !equalTexts(broadcast, "boop Cleo", "boop Cleo->Rex") {
		t.Fatalf("unexpected broadcasts: %q", broadcast)
	}
}
