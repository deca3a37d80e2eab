// Package action provides the built-in sync actions: an rsync transport and
// a generic command template. Actions receive one pending event through the
// pipeline inlet and return a started child process, or nil when the event
// needs no work.
package action

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/driftsyncapp/driftsync-daemon/internal/id"
	"github.com/driftsyncapp/driftsync-daemon/internal/pipeline"
)

// Rsync returns the default mirror action. Content events transfer the
// changed entry; deletions resync the parent directory with --delete so the
// removal propagates. rsync has no notion of a server-side rename, so origins
// using this action leave move handling off and let the pipeline decompose
// moves.
func Rsync(prog string, extraOpts []string, log *slog.Logger) pipeline.Action {
	if prog == "" {
		prog = "rsync"
	}
	return func(in *pipeline.Inlet) (*exec.Cmd, error) {
		jobID := id.Job()
		src := in.SourcePath()
		dst := in.TargetPath()

		var args []string
		switch in.Kind() {
		case pipeline.KindDelete, pipeline.KindMoveFrom:
			args = append(args, "-rlt", "--delete")
			args = append(args, extraOpts...)
			args = append(args, parentDir(src), parentDir(dst))
		default:
			info, err := os.Lstat(src)
			if err != nil {
				// The entry vanished between the event and its deadline; the
				// Delete that follows will reconcile the target.
				log.Debug("source gone before sync, skipping", "job", jobID, "path", src)
				return nil, nil
			}
			if info.IsDir() {
				args = append(args, "-rlt")
				args = append(args, extraOpts...)
				args = append(args, ensureSlash(src), ensureSlash(dst))
			} else {
				args = append(args, "-lt")
				args = append(args, extraOpts...)
				args = append(args, src, dst)
			}
		}

		cmd := exec.Command(prog, args...) //#nosec G204 -- program and options come from the operator's config
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", prog, err)
		}
		log.Info("sync started", "job", jobID, "kind", in.Kind(), "source", src, "target", dst, "pid", cmd.Process.Pid)
		return cmd, nil
	}
}

// RsyncStartup returns a startup action doing one full-tree transfer with
// deletion, bringing the target in line before watching begins.
func RsyncStartup(prog string, extraOpts []string, log *slog.Logger) pipeline.StartupAction {
	if prog == "" {
		prog = "rsync"
	}
	return func(source, target string) (*exec.Cmd, error) {
		args := append([]string{"-rlt", "--delete"}, extraOpts...)
		args = append(args, ensureSlash(source), ensureSlash(target))

		cmd := exec.Command(prog, args...) //#nosec G204 -- program and options come from the operator's config
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", prog, err)
		}
		log.Info("startup sync started", "source", source, "target", target, "pid", cmd.Process.Pid)
		return cmd, nil
	}
}

// Command returns an action running an arbitrary program. Occurrences of
// {source}, {target}, {source2}, {target2} and {event} in argv are replaced
// per invocation.
func Command(argv []string, log *slog.Logger) pipeline.Action {
	return func(in *pipeline.Inlet) (*exec.Cmd, error) {
		if len(argv) == 0 {
			return nil, fmt.Errorf("empty action command")
		}
		jobID := id.Job()

		expanded := make([]string, len(argv))
		for i, a := range argv {
			expanded[i] = expandPlaceholders(a, in)
		}

		cmd := exec.Command(expanded[0], expanded[1:]...) //#nosec G204 -- command template comes from the operator's config
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", expanded[0], err)
		}
		log.Info("action started", "job", jobID, "kind", in.Kind(), "command", expanded[0], "pid", cmd.Process.Pid)
		return cmd, nil
	}
}

// CommandStartup returns a startup action running an arbitrary program with
// {source} and {target} substituted.
func CommandStartup(argv []string, log *slog.Logger) pipeline.StartupAction {
	return func(source, target string) (*exec.Cmd, error) {
		if len(argv) == 0 {
			return nil, fmt.Errorf("empty startup command")
		}

		expanded := make([]string, len(argv))
		for i, a := range argv {
			a = strings.ReplaceAll(a, "{source}", source)
			a = strings.ReplaceAll(a, "{target}", target)
			expanded[i] = a
		}

		cmd := exec.Command(expanded[0], expanded[1:]...) //#nosec G204 -- command template comes from the operator's config
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", expanded[0], err)
		}
		log.Info("startup command started", "command", expanded[0], "pid", cmd.Process.Pid)
		return cmd, nil
	}
}

// expandPlaceholders substitutes the event's paths and kind into one argv
// element.
func expandPlaceholders(a string, in *pipeline.Inlet) string {
	a = strings.ReplaceAll(a, "{source}", in.SourcePath())
	a = strings.ReplaceAll(a, "{target}", in.TargetPath())
	a = strings.ReplaceAll(a, "{source2}", in.SourcePath2())
	a = strings.ReplaceAll(a, "{target2}", in.TargetPath2())
	a = strings.ReplaceAll(a, "{event}", in.Kind().String())
	return a
}

// parentDir returns the directory containing p, with a trailing slash. Works
// on target identifiers too since those are slash-separated by convention.
func parentDir(p string) string {
	return ensureSlash(path.Dir(strings.TrimSuffix(p, "/")))
}

// ensureSlash appends a trailing slash so rsync treats the path as directory
// contents.
func ensureSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
