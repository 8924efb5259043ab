// Package service renders and installs a systemd unit that keeps
// `threadbot run` alive on a Linux host.
package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/joho/godotenv"
)

const (
	Name = "threadbot"
	// DefaultUnitPath is where Install writes when no path is given.
	DefaultUnitPath = "/etc/systemd/system/" + Name + ".service"
)

type Unit struct {
	BinPath string
	WorkDir string
	EnvFile string
	User    string
}

// NewUnit describes a unit for the running binary configured by envFile.
func NewUnit(envFile, user string) (Unit, error) {
	exe, err := os.Executable()
	if err != nil {
		return Unit{}, fmt.Errorf("resolving executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return Unit{}, fmt.Errorf("resolving symlinks: %w", err)
	}
	if envFile != "" {
		if envFile, err = filepath.Abs(envFile); err != nil {
			return Unit{}, fmt.Errorf("resolving env file: %w", err)
		}
	}
	return Unit{BinPath: exe, WorkDir: resolveWorkDir(envFile), EnvFile: envFile, User: user}, nil
}

// resolveWorkDir picks the service's working directory. A relative
// DATABASE_PATH or FAQ_INDEX_PATH in the env file is resolved against the
// directory the unit is generated from; otherwise the env file's directory
// is used.
func resolveWorkDir(envFile string) string {
	wd, _ := os.Getwd()
	if envFile == "" {
		return wd
	}
	vars, err := godotenv.Read(envFile)
	if err != nil {
		return filepath.Dir(envFile)
	}
	for _, key := range []string{"DATABASE_PATH", "FAQ_INDEX_PATH"} {
		if p, ok := vars[key]; ok && !filepath.IsAbs(p) {
			return wd
		}
	}
	return filepath.Dir(envFile)
}

// Render returns the unit file text.
func (u Unit) Render() (string, error) {
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, u); err != nil {
		return "", fmt.Errorf("rendering unit: %w", err)
	}
	return buf.String(), nil
}

// Install writes the unit to path. systemd still has to be reloaded.
func (u Unit) Install(path string) error {
	text, err := u.Render()
	if err != nil {
		return err
	}
	if path == "" {
		path = DefaultUnitPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing unit to %s: %w", path, err)
	}
	return nil
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=threadbot chat assistant
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.BinPath}} run
WorkingDirectory={{.WorkDir}}
{{- if .EnvFile}}
EnvironmentFile={{.EnvFile}}
{{- end}}
{{- if .User}}
User={{.User}}
{{- end}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`))
