// Package dialog shows native folder-picker and save-file dialogs through
// github.com/ncruces/zenity: system APIs on Windows and macOS, and the
// zenity, matedialog or qarma helper elsewhere.
//
// A user cancelling a dialog is not an error: both methods report it as
// ("", false, nil).
package dialog

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/ncruces/zenity"
)

// Backend names accepted in configuration.
const (
	BackendAuto = "auto"
	BackendNone = "none"
)

// ErrNoBackend is returned when dialogs are disabled or cannot be shown.
var ErrNoBackend = errors.New("dialog: no dialog backend available")

// unixHelpers are the programs zenity drives outside Windows and macOS, in
// the order it prefers them.
var unixHelpers = []string{"zenity", "matedialog", "qarma"}

// Picker shows native dialogs.
type Picker interface {
	// PickFolder asks for an existing directory.
	PickFolder(ctx context.Context, title string) (path string, ok bool, err error)

	// SaveFile asks for a destination file, pre-filled with defaultName.
	SaveFile(ctx context.Context, title, defaultName string) (path string, ok bool, err error)
}

type selectFunc func(options ...zenity.Option) (string, error)

// NativePicker implements Picker with zenity.
type NativePicker struct {
	backend    string
	selectFile selectFunc
	selectSave selectFunc
}

// NewNativePicker returns a picker, or ErrNoBackend when backend is "none"
// or no dialog helper is installed.
func NewNativePicker(backend string) (*NativePicker, error) {
	if backend == BackendNone {
		return nil, ErrNoBackend
	}
	resolved, err := resolveBackend(runtime.GOOS, exec.LookPath)
	if err != nil {
		return nil, err
	}
	return &NativePicker{
		backend:    resolved,
		selectFile: zenity.SelectFile,
		selectSave: zenity.SelectFileSave,
	}, nil
}

// Backend names what shows the dialogs: "native", or the helper program.
func (p *NativePicker) Backend() string {
	return p.backend
}

// PickFolder implements Picker.
func (p *NativePicker) PickFolder(ctx context.Context, title string) (string, bool, error) {
	path, err := p.selectFile(zenity.Context(ctx), zenity.Title(title), zenity.Directory())
	return result(path, err)
}

// SaveFile implements Picker.
func (p *NativePicker) SaveFile(ctx context.Context, title, defaultName string) (string, bool, error) {
	path, err := p.selectSave(
		zenity.Context(ctx),
		zenity.Title(title),
		zenity.Filename(defaultName),
		zenity.ConfirmOverwrite(),
	)
	return result(path, err)
}

func result(path string, err error) (string, bool, error) {
	switch {
	case errors.Is(err, zenity.ErrCanceled):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("dialog: %w", err)
	case path == "":
		return "", false, nil
	}
	return path, true, nil
}

func resolveBackend(goos string, lookPath func(string) (string, error)) (string, error) {
	switch goos {
	case "darwin", "windows":
		return "native", nil
	}
	for _, helper := range unixHelpers {
		if _, err := lookPath(helper); err == nil {
			return helper, nil
		}
	}
	return "", ErrNoBackend
}
