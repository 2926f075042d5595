// Package nativeapi binds the host's operation names to their
// implementations and registers them with a dispatch.Dispatcher.
//
// Results follow the shell's conventions: a cancelled dialog yields an empty
// result, fs.existsSync answers "true" or "", and fs.mkdirSync never fails.
package nativeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/nerrad567/nativehost/internal/dialog"
	"github.com/nerrad567/nativehost/internal/dispatch"
	"github.com/nerrad567/nativehost/internal/history"
	"github.com/nerrad567/nativehost/internal/javalocate"
	"github.com/nerrad567/nativehost/internal/native"
	"github.com/nerrad567/nativehost/internal/process"
)

// Dialog titles shown to the user.
const (
	scaffoldTitle  = "Please select your battlecode-scaffold directory."
	exportMapTitle = "Export map"
)

// ErrNoDialog is returned by dialog operations when no picker is configured.
var ErrNoDialog = errors.New("nativeapi: no dialog backend configured")

// Supervisor is the subset of *process.Supervisor the operations use.
type Supervisor interface {
	Spawn(ctx context.Context, req process.LaunchRequest) (process.ID, error)
	Kill(id process.ID) error
	List() []process.Info
}

// JavaFinder discovers installed JVMs.
type JavaFinder interface {
	Find(ctx context.Context) ([]javalocate.JVM, error)
}

// VersionFetcher looks up the public release for an episode.
type VersionFetcher interface {
	Version(ctx context.Context, episode string) string
}

// HistoryReader returns recent runs, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Deps holds the collaborators. Supervisor is required; a nil Picker makes
// dialog operations fail with ErrNoDialog, a nil History makes
// child_process.history fail with history.ErrDisabled.
type Deps struct {
	Supervisor Supervisor
	Javas      JavaFinder
	Picker     dialog.Picker
	Releases   VersionFetcher
	History    HistoryReader

	// RootPath overrides executable-directory resolution for getRootPath.
	RootPath func() (string, error)

	// WriteFile persists exported maps. Defaults to os.WriteFile.
	WriteFile func(name string, data []byte, perm os.FileMode) error
}

// API holds the bound operations.
type API struct {
	deps Deps
}

// New validates deps and fills defaults.
func New(deps Deps) (*API, error) {
	if deps.Supervisor == nil {
		return nil, errors.New("nativeapi: supervisor is required")
	}
	if deps.RootPath == nil {
		deps.RootPath = native.RootPath
	}
	if deps.WriteFile == nil {
		deps.WriteFile = os.WriteFile
	}
	return &API{deps: deps}, nil
}

// Register installs every operation on d.
func (a *API) Register(d *dispatch.Dispatcher) {
	d.Handle("openScaffoldDirectory", dispatch.None(), a.openScaffoldDirectory)
	d.Handle("getRootPath", dispatch.None(), a.getRootPath)
	d.Handle("getJavas", dispatch.None(), a.getJavas)
	d.Handle("exportMap", dispatch.Exactly(1), a.exportMap)
	d.Handle("getServerVersion", dispatch.Exactly(1), a.getServerVersion)

	d.Handle("path.join", dispatch.AtLeast(1), pathJoin)
	d.Handle("path.relative", dispatch.Exactly(2), pathRelative)
	d.Handle("path.dirname", dispatch.Exactly(1), pathDirname)
	d.Handle("path.sep", dispatch.None(), pathSep)

	d.Handle("fs.existsSync", dispatch.Exactly(1), fsExists)
	d.Handle("fs.mkdirSync", dispatch.Exactly(1), fsMkdir)
	d.Handle("fs.getFiles", dispatch.Between(1, 2), fsGetFiles)

	d.Handle("child_process.spawn", dispatch.AtLeast(2), a.spawn)
	d.Handle("child_process.kill", dispatch.Exactly(1), a.kill)
	d.Handle("child_process.list", dispatch.None(), a.list)
	d.Handle("child_process.history", dispatch.Between(0, 1), a.history)
}

func (a *API) openScaffoldDirectory(ctx context.Context, _ dispatch.Request) ([]string, error) {
	if a.deps.Picker == nil {
		return nil, ErrNoDialog
	}
	dir, ok, err := a.deps.Picker.PickFolder(ctx, scaffoldTitle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []string{dir}, nil
}

func (a *API) getRootPath(context.Context, dispatch.Request) ([]string, error) {
	root, err := a.deps.RootPath()
	if err != nil {
		return nil, err
	}
	return []string{root}, nil
}

func (a *API) getJavas(ctx context.Context, _ dispatch.Request) ([]string, error) {
	if a.deps.Javas == nil {
		return nil, nil
	}
	jvms, err := a.deps.Javas.Find(ctx)
	if err != nil {
		return nil, err
	}
	return javalocate.Pairs(jvms), nil
}

// exportMap asks where to save and writes req.Data there. Cancelling is not
// an error.
func (a *API) exportMap(ctx context.Context, req dispatch.Request) ([]string, error) {
	if a.deps.Picker == nil {
		return nil, ErrNoDialog
	}
	dest, ok, err := a.deps.Picker.SaveFile(ctx, exportMapTitle, req.Args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if err := a.deps.WriteFile(dest, req.Data, 0o644); err != nil { //nolint:gosec // user-chosen export file
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil, nil
}

func (a *API) getServerVersion(ctx context.Context, req dispatch.Request) ([]string, error) {
	if a.deps.Releases == nil {
		return []string{""}, nil
	}
	return []string{a.deps.Releases.Version(ctx, req.Args[0])}, nil
}

func pathJoin(_ context.Context, req dispatch.Request) ([]string, error) {
	return []string{native.Join(req.Args...)}, nil
}

func pathRelative(_ context.Context, req dispatch.Request) ([]string, error) {
	rel, err := native.Relative(req.Args[0], req.Args[1])
	if err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

func pathDirname(_ context.Context, req dispatch.Request) ([]string, error) {
	return []string{native.Dirname(req.Args[0])}, nil
}

func pathSep(context.Context, dispatch.Request) ([]string, error) {
	return []string{native.Separator()}, nil
}

func fsExists(_ context.Context, req dispatch.Request) ([]string, error) {
	if native.Exists(req.Args[0]) {
		return []string{"true"}, nil
	}
	return []string{""}, nil
}

func fsMkdir(_ context.Context, req dispatch.Request) ([]string, error) {
	_ = native.Mkdir(req.Args[0]) //nolint:errcheck // best effort
	return []string{""}, nil
}

// fsGetFiles lists files; the optional second argument enables recursion
// only when it is exactly "true".
func fsGetFiles(_ context.Context, req dispatch.Request) ([]string, error) {
	recursive := len(req.Args) == 2 && req.Args[1] == "true"
	return native.GetFiles(req.Args[0], recursive)
}

// spawn takes workDir, javaHome and the wrapper arguments.
func (a *API) spawn(ctx context.Context, req dispatch.Request) ([]string, error) {
	id, err := a.deps.Supervisor.Spawn(ctx, process.LaunchRequest{
		WorkDir:  req.Args[0],
		JavaHome: req.Args[1],
		Args:     append([]string(nil), req.Args[2:]...),
	})
	if err != nil {
		return nil, err
	}
	return []string{string(id)}, nil
}

func (a *API) kill(_ context.Context, req dispatch.Request) ([]string, error) {
	if err := a.deps.Supervisor.Kill(process.ID(req.Args[0])); err != nil {
		return nil, err
	}
	return []string{""}, nil
}

func (a *API) list(context.Context, dispatch.Request) ([]string, error) {
	infos := a.deps.Supervisor.List()
	pids := make([]string, 0, len(infos))
	for _, info := range infos {
		pids = append(pids, string(info.PID))
	}
	return pids, nil
}

// history returns one JSON object per run, newest first.
func (a *API) history(ctx context.Context, req dispatch.Request) ([]string, error) {
	if a.deps.History == nil {
		return nil, history.ErrDisabled
	}
	limit := history.DefaultLimit
	if len(req.Args) == 1 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n <= 0 {
			return nil, dispatch.BadArgument(req.Operation, "limit %q is not a positive integer", req.Args[0])
		}
		limit = n
	}

	runs, err := a.deps.History.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		b, err := json.Marshal(run)
		if err != nil {
			return nil, fmt.Errorf("encoding run %s: %w", run.ID, err)
		}
		out = append(out, string(b))
	}
	return out, nil
}
