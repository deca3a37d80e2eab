package action

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsyncapp/driftsync-daemon/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// originOver builds an origin rooted at a real temp directory.
func originOver(t *testing.T, dir string) *pipeline.Origin {
	t.Helper()
	noop := func(*pipeline.Inlet) (*exec.Cmd, error) { return nil, nil }
	return pipeline.NewOrigin(dir+"/", "backup:/mirror/", pipeline.OriginConfig{Action: noop, MaxProcesses: 1}, testLogger())
}

func wait(t *testing.T, cmd *exec.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	_ = cmd.Wait()
}

func TestRsync_FileModify(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))
	o := originOver(t, dir)

	act := Rsync("echo", nil, testLogger())
	in := pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindModify, Path: "f.txt"})

	cmd, err := act(in)
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Equal(t, []string{"echo", "-lt", dir + "/f.txt", "backup:/mirror/f.txt"}, cmd.Args)
}

func TestRsync_DirectoryCreateIsRecursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	o := originOver(t, dir)

	act := Rsync("echo", nil, testLogger())
	in := pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindCreate, Path: "sub/"})

	cmd, err := act(in)
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Equal(t, []string{"echo", "-rlt", dir + "/sub/", "backup:/mirror/sub/"}, cmd.Args)
}

func TestRsync_DeleteSyncsParentWithDeletion(t *testing.T) {
	dir := t.TempDir()
	o := originOver(t, dir)

	act := Rsync("echo", nil, testLogger())
	in := pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindDelete, Path: "sub/f.txt"})

	cmd, err := act(in)
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Equal(t, []string{"echo", "-rlt", "--delete", dir + "/sub/", "backup:/mirror/sub/"}, cmd.Args)
}

func TestRsync_VanishedSourceSkips(t *testing.T) {
	o := originOver(t, t.TempDir())

	act := Rsync("echo", nil, testLogger())
	in := pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindModify, Path: "never-existed"})

	cmd, err := act(in)
	require.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestRsync_ExtraOpts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))
	o := originOver(t, dir)

	act := Rsync("echo", []string{"--compress"}, testLogger())
	in := pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindModify, Path: "f"})

	cmd, err := act(in)
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Contains(t, cmd.Args, "--compress")
}

func TestRsyncStartup_FullTree(t *testing.T) {
	startup := RsyncStartup("echo", nil, testLogger())

	cmd, err := startup("/data/src/", "backup:/mirror/")
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Equal(t, []string{"echo", "-rlt", "--delete", "/data/src/", "backup:/mirror/"}, cmd.Args)
}

func TestCommand_ExpandsPlaceholders(t *testing.T) {
	o := originOver(t, t.TempDir())

	act := Command([]string{"echo", "{event}", "{source}", "{target}"}, testLogger())
	in := pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindCreate, Path: "a/b"})

	cmd, err := act(in)
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Equal(t, "Create", cmd.Args[1])
	assert.Equal(t, o.Source+"a/b", cmd.Args[2])
	assert.Equal(t, "backup:/mirror/a/b", cmd.Args[3])
}

func TestCommand_MovePlaceholders(t *testing.T) {
	o := originOver(t, t.TempDir())

	act := Command([]string{"echo", "{source2}", "{target2}"}, testLogger())
	in := pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindMove, Path: "old", Path2: "new"})

	cmd, err := act(in)
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Equal(t, o.Source+"new", cmd.Args[1])
	assert.Equal(t, "backup:/mirror/new", cmd.Args[2])
}

func TestCommand_EmptyArgv(t *testing.T) {
	o := originOver(t, t.TempDir())

	act := Command(nil, testLogger())
	_, err := act(pipeline.NewInlet(o, &pipeline.Delay{Kind: pipeline.KindModify, Path: "f"}))
	assert.Error(t, err)
}

func TestCommandStartup_Expands(t *testing.T) {
	startup := CommandStartup([]string{"echo", "{source}", "{target}"}, testLogger())

	cmd, err := startup("/src/", "dst/")
	require.NoError(t, err)
	defer wait(t, cmd)

	assert.Equal(t, []string{"echo", "/src/", "dst/"}, cmd.Args)
}
