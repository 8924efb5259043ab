package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	u := Unit{BinPath: "/usr/local/bin/threadbot", WorkDir: "/srv/threadbot", EnvFile: "/srv/threadbot/.env", User: "bot"}
	text, err := u.Render()
	require.NoError(t, err)

	assert.Contains(t, text, "ExecStart=/usr/local/bin/threadbot run\n")
	assert.Contains(t, text, "WorkingDirectory=/srv/threadbot\n")
	assert.Contains(t, text, "EnvironmentFile=/srv/threadbot/.env\n")
	assert.Contains(t, text, "User=bot\n")
}

func TestRender_OptionalFields(t *testing.T) {
	text, err := Unit{BinPath: "/bin/threadbot", WorkDir: "/"}.Render()
	require.NoError(t, err)
	assert.NotContains(t, text, "EnvironmentFile")
	assert.NotContains(t, text, "User=")
}

func TestResolveWorkDir(t *testing.T) {
	dir := t.TempDir()
	wd := t.TempDir()
	t.Chdir(wd)
	wd, _ = os.Getwd()

	abs := filepath.Join(dir, "abs.env")
	require.NoError(t, os.WriteFile(abs, []byte("DATABASE_PATH=/var/lib/threadbot/data.db\nFAQ_INDEX_PATH=/var/lib/threadbot/faq\n"), 0600))
	rel := filepath.Join(dir, "rel.env")
	require.NoError(t, os.WriteFile(rel, []byte("DATABASE_PATH=./data.db\n"), 0600))

	assert.Equal(t, dir, resolveWorkDir(abs))
	assert.Equal(t, wd, resolveWorkDir(rel))
	assert.Equal(t, wd, resolveWorkDir(""))
	assert.Equal(t, dir, resolveWorkDir(filepath.Join(dir, "missing.env")))
}

func TestInstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units", "threadbot.service")
	u := Unit{BinPath: "/bin/threadbot", WorkDir: "/srv"}
	require.NoError(t, u.Install(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	want, _ := u.Render()
	assert.Equal(t, want, string(got))
}
