package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Connicpu/boop/internal/announce"
	"github.com/Connicpu/boop/internal/client"
	"github.com/Connicpu/boop/internal/daemon"
	"github.com/Connicpu/boop/internal/install"
	"github.com/Connicpu/boop/internal/mdns"
	"github.com/charmbracelet/lipgloss"
)

const peersTimeout = 2 * time.Second

func defaultActions() actions {
	return actions{
		boop:    runBoop,
		daemon:  runDaemon,
		install: runInstall,
		peers:   runPeers,
	}
}

type styles struct {
	accent lipgloss.Style
	name   lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(env *environment) styles {
	r := lipgloss.NewRenderer(env.out)
	return styles{
		accent: r.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true),
		name:   r.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#6c7086")),
	}
}

func runBoop(ctx context.Context, env *environment, recipient string, everyone bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	c := client.Client{Port: env.cfg.Port, ResolveTimeout: env.cfg.ResolveTimeout}
	var (
		res client.Result
		err error
	)
	if everyone {
		res, err = c.BoopEveryone(ctx)
	} else {
		res, err = c.BoopName(ctx, recipient)
	}
	if errors.Is(err, client.ErrNoDaemon) {
		return fmt.Errorf("%w (is `boop --daemon <name>` running on this machine?)", err)
	}
	if err != nil {
		return err
	}

	st := newStyles(env)
	target := st.name.Render("everyone")
	if res.Notification.Targeted {
		target = st.name.Render(res.Notification.Recipient)
	}
	fmt.Fprintf(env.out, "%s %s %s\n",
		st.accent.Render("booped"),
		target,
		st.muted.Render("as "+res.Notification.Sender))
	return nil
}

func runDaemon(env *environment, name string) error {
	svc := daemon.NewService(daemon.ServiceConfig{
		Name:        name,
		Port:        env.cfg.Port,
		ErrorPolicy: env.cfg.ErrorPolicy,
		Announcer: announce.Config{
			Kind:          env.cfg.Announcer,
			SpeechCommand: env.cfg.SpeechCommand,
			Out:           env.out,
		},
		AdminAddr:   env.cfg.AdminAddr,
		AdminToken:  env.cfg.AdminToken,
		CorsOrigins: env.cfg.CorsOrigins,
		MDNS:        env.cfg.MDNS,
		Version:     Version,
	})
	return svc.Run()
}

func runInstall(ctx context.Context, env *environment, name string) error {
	inst, err := install.New(install.Config{ConfigPath: env.configPath})
	if err != nil {
		return err
	}
	res, err := inst.Install(ctx, name)
	if err != nil {
		return err
	}

	st := newStyles(env)
	fmt.Fprintf(env.out, "%s %s %s\n",
		st.accent.Render("installed"),
		st.name.Render(name),
		st.muted.Render(res.Entry))
	if res.ConfigWritten {
		fmt.Fprintf(env.out, "%s %s\n", st.muted.Render("wrote config"), env.configPath)
	}
	return nil
}

func runPeers(ctx context.Context, env *environment) error {
	peers, err := mdns.Browse(ctx, peersTimeout)
	if err != nil {
		return err
	}

	st := newStyles(env)
	if len(peers) == 0 {
		fmt.Fprintln(env.out, st.muted.Render("no boop daemons found"))
		return nil
	}
	for _, p := range peers {
		addr := p.Host
		if len(p.Addrs) > 0 {
			addr = p.Addrs[0].String()
		}
		fmt.Fprintf(env.out, "%s %s\n", st.name.Render(p.Name), st.muted.Render(addr))
	}
	return nil
}
