// Package install registers the boop daemon to start at login and starts it.
package install

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Connicpu/boop/internal/config"
	"github.com/Connicpu/boop/internal/protocol"
	"github.com/Connicpu/boop/internal/tools"
	"github.com/rs/zerolog/log"
)

var (
	ErrInstall        = errors.New("install: autostart install failed")
	ErrMissingEnv     = errors.New("install: required environment variable unset")
	ErrCommandFailure = errors.New("install: command failed")
)

const (
	shortcutName   = "Boop.lnk"
	desktopName    = "boop.desktop"
	launchAgentID  = "io.github.connicpu.boop"
	defaultSysRoot = `C:\Windows`
)

// Config describes the host; zero fields are filled from the running process.
type Config struct {
	GOOS       string
	Executable string
	Home       string
	Getenv     func(string) string
	Runner     tools.CommandRunner
	// ConfigPath receives the default config template when no file exists.
	ConfigPath string
}

// Result reports what Install changed.
type Result struct {
	Entry         string
	ConfigWritten bool
}

type Installer struct {
	goos       string
	exe        string
	home       string
	getenv     func(string) string
	runner     tools.CommandRunner
	configPath string
}

func New(cfg Config) (*Installer, error) {
	inst := &Installer{
		goos:       cfg.GOOS,
		exe:        cfg.Executable,
		home:       cfg.Home,
		getenv:     cfg.Getenv,
		runner:     cfg.Runner,
		configPath: cfg.ConfigPath,
	}
	if inst.goos == "" {
		inst.goos = runtime.GOOS
	}
	if inst.exe == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: locate executable: %w", ErrInstall, err)
		}
		inst.exe = exe
	}
	if inst.getenv == nil {
		inst.getenv = os.Getenv
	}
	if inst.home == "" && inst.goos != "windows" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: locate home: %w", ErrInstall, err)
		}
		inst.home = home
	}
	if inst.runner == nil {
		inst.runner = tools.ExecRunner{}
	}
	return inst, nil
}

// Install writes the autostart entry running "<exe> --daemon <name>" and
// starts the daemon now.
func (i *Installer) Install(ctx context.Context, name string) (Result, error) {
	if err := protocol.ValidateName(name); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInstall, err)
	}

	var (
		res Result
		err error
	)
	switch i.goos {
	case "windows":
		res.Entry, err = i.installWindows(ctx, name)
	case "darwin":
		res.Entry, err = i.installLaunchAgent(ctx, name)
	default:
		res.Entry, err = i.installXDG(name)
	}
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInstall, err)
	}

	if i.configPath != "" {
		err := config.WriteTemplate(i.configPath, config.Default(), false)
		switch {
		case err == nil:
			res.ConfigWritten = true
		case errors.Is(err, config.ErrConfigExists):
		default:
			return res, fmt.Errorf("%w: %w", ErrInstall, err)
		}
	}

	log.Info().
		Str("name", name).
		Str("entry", res.Entry).
		Bool("config_written", res.ConfigWritten).
		Msg("install: autostart registered")
	return res, nil
}

// installWindows drops a Startup-folder shortcut that launches the daemon
// through a hidden PowerShell window, then opens the shortcut.
func (i *Installer) installWindows(ctx context.Context, name string) (string, error) {
	appData := i.getenv("APPDATA")
	if appData == "" {
		return "", fmt.Errorf("%w: APPDATA", ErrMissingEnv)
	}
	sysRoot := i.getenv("SystemRoot")
	if sysRoot == "" {
		sysRoot = defaultSysRoot
	}
	posh := winJoin(sysRoot, "System32", "WindowsPowerShell", "v1.0", "powershell.exe")
	shortcut := winJoin(appData, "Microsoft", "Windows", "Start Menu", "Programs", "Startup", shortcutName)

	if err := i.run(ctx, posh, "-NoProfile", "-NonInteractive", "-Command", shortcutScript(shortcut, posh, i.exe, name)); err != nil {
		return "", err
	}
	if err := i.runner.Start("cmd.exe", "/C", shortcut); err != nil {
		return "", fmt.Errorf("%w: start shortcut: %w", ErrCommandFailure, err)
	}
	return shortcut, nil
}

func shortcutScript(shortcut, posh, exe, name string) string {
	inner := "& " + psQuote(exe) + " --daemon " + psQuote(name)
	args := `-WindowStyle Hidden -Command "` + strings.ReplaceAll(inner, `"`, `\"`) + `"`
	return strings.Join([]string{
		"$ws = New-Object -ComObject WScript.Shell",
		"$s = $ws.CreateShortcut(" + psQuote(shortcut) + ")",
		"$s.TargetPath = " + psQuote(posh),
		"$s.WorkingDirectory = " + psQuote(winDir(exe)),
		"$s.Arguments = " + psQuote(args),
		"$s.WindowStyle = 7",
		"$s.Save()",
	}, "; ")
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func winJoin(parts ...string) string {
	for idx := range parts {
		parts[idx] = strings.TrimRight(parts[idx], `\`)
	}
	return strings.Join(parts, `\`)
}

func winDir(path string) string {
	if idx := strings.LastIndexAny(path, `\/`); idx > 0 {
		return path[:idx]
	}
	return path
}

// installXDG writes an XDG autostart entry and starts the daemon detached.
func (i *Installer) installXDG(name string) (string, error) {
	base := i.getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(i.home, ".config")
	}
	path := filepath.Join(base, "autostart", desktopName)
	if err := writeFile(path, desktopEntry(i.exe, name)); err != nil {
		return "", err
	}
	if err := i.runner.Start(i.exe, "--daemon", name); err != nil {
		return "", fmt.Errorf("%w: start daemon: %w", ErrCommandFailure, err)
	}
	return path, nil
}

func desktopEntry(exe, name string) []byte {
	var b bytes.Buffer
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=Boop\n")
	b.WriteString("Comment=Listen for boops as " + desktopValue(name) + "\n")
	b.WriteString("Exec=" + execArg(exe) + " --daemon " + execArg(name) + "\n")
	b.WriteString("Terminal=false\n")
	b.WriteString("NoDisplay=true\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return b.Bytes()
}

// execArg quotes one Exec argument using the freedesktop Desktop Entry
// quoting rules; the string-level escape of backslashes is applied on top.
func execArg(arg string) string {
	arg = strings.ReplaceAll(arg, "%", "%%")
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range arg {
		switch r {
		case '\\':
			b.WriteString(`\\\\`)
		case '"', '`', '$':
			b.WriteString(`\\`)
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func desktopValue(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\t", `\t`, "\r", `\r`).Replace(s)
}

// installLaunchAgent writes a per-user LaunchAgent and loads it, which also
// starts the daemon because RunAtLoad is set.
func (i *Installer) installLaunchAgent(ctx context.Context, name string) (string, error) {
	path := filepath.Join(i.home, "Library", "LaunchAgents", launchAgentID+".plist")
	if err := writeFile(path, launchAgentPlist(i.exe, name)); err != nil {
		return "", err
	}
	if err := i.run(ctx, "launchctl", "load", "-w", path); err != nil {
		return "", err
	}
	return path, nil
}

func launchAgentPlist(exe, name string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	b.WriteString("<plist version=\"1.0\">\n<dict>\n")
	b.WriteString("\t<key>Label</key>\n\t<string>" + launchAgentID + "</string>\n")
	b.WriteString("\t<key>ProgramArguments</key>\n\t<array>\n")
	for _, arg := range []string{exe, "--daemon", name} {
		b.WriteString("\t\t<string>")
		xml.EscapeText(&b, []byte(arg))
		b.WriteString("</string>\n")
	}
	b.WriteString("\t</array>\n")
	b.WriteString("\t<key>RunAtLoad</key>\n\t<true/>\n")
	b.WriteString("</dict>\n</plist>\n")
	return b.Bytes()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (i *Installer) run(ctx context.Context, name string, args ...string) error {
	log.Debug().Str("cmd", name).Strs("args", args).Msg("install: exec")
	stdout, stderr, exitCode, err := i.runner.Run(ctx, name, args...)
	if err == nil {
		return nil
	}
	return fmt.Errorf(
		"%w: cmd=%s exit=%d stdout=%q stderr=%q: %w",
		ErrCommandFailure,
		name,
		exitCode,
		strings.TrimSpace(string(stdout)),
		strings.TrimSpace(string(stderr)),
		err,
	)
}
