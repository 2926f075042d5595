package native

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		elem []string
		want string
	}{
		{[]string{"a", "b", "c"}, filepath.Join("a", "b", "c")},
		{[]string{"a", "", "b"}, filepath.Join("a", "b")},
		{[]string{"a", "..", "b"}, "b"},
		{[]string{"scaffold"}, "scaffold"},
	}
	for _, tt := range tests {
		if got := Join(tt.elem...); got != tt.want {
			t.Errorf("Join(%v) = %q, want %q", tt.elem, got, tt.want)
		}
	}
}

func TestRelative(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "child", target: filepath.Join(base, "maps", "a.map"), want: filepath.Join("maps", "a.map")},
		{name: "sibling", target: filepath.Join(filepath.Dir(base), "other"), want: filepath.Join("..", "other")},
		{name: "same", target: base, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Relative(base, tt.target)
			if err != nil {
				t.Fatalf("Relative() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Relative() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirname(t *testing.T) {
	root := string(filepath.Separator)
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"gradlew", ""},
		{root, ""},
		{filepath.Join(root, "proj", "gradlew"), filepath.Join(root, "proj")},
		{filepath.Join("proj", "src") + root, "proj"},
	}
	for _, tt := range tests {
		if got := Dirname(tt.in); got != tt.want {
			t.Errorf("Dirname(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSeparator(t *testing.T) {
	want := "/"
	if runtime.GOOS == "windows" {
		want = `\`
	}
	if got := Separator(); got != want {
		t.Errorf("Separator() = %q, want %q", got, want)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gradlew")
	if err := os.WriteFile(file, []byte("#!/bin/sh\n"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{dir, true},
		{file, true},
		{filepath.Join(dir, "missing"), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Exists(tt.path); got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMkdir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "matches")

	if err := Mkdir(dir); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if !Exists(dir) {
		t.Error("directory not created")
	}
	if err := Mkdir(dir); !errors.Is(err, fs.ErrExist) {
		t.Errorf("second Mkdir() error = %v, want fs.ErrExist", err)
	}
}

func TestRootPath(t *testing.T) {
	root, err := RootPath()
	if err != nil {
		t.Fatalf("RootPath() error = %v", err)
	}
	if !filepath.IsAbs(root) {
		t.Errorf("RootPath() = %q, want absolute path", root)
	}
}

// writeTree creates dir/top.txt and dir/sub/inner.txt.
func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "top.txt"), nil, 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "inner.txt"), nil, 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return dir
}

func TestGetFiles(t *testing.T) {
	dir := writeTree(t)

	tests := []struct {
		name      string
		recursive bool
		want      []string
	}{
		{name: "flat", recursive: false, want: []string{filepath.Join(dir, "top.txt")}},
		{name: "recursive", recursive: true, want: []string{
			filepath.Join(dir, "sub", "inner.txt"),
			filepath.Join(dir, "top.txt"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetFiles(dir, tt.recursive)
			if err != nil {
				t.Fatalf("GetFiles() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetFiles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetFiles_SkipsSymlinkedDirectories(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := writeTree(t)
	if err := os.Symlink(dir, filepath.Join(dir, "loop")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	got, err := GetFiles(dir, true)
	if err != nil {
		t.Fatalf("GetFiles() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("GetFiles() = %v, want 2 files", got)
	}
}

func TestGetFiles_MissingDirectory(t *testing.T) {
	_, err := GetFiles(filepath.Join(t.TempDir(), "nope"), false)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("GetFiles() error = %v, want fs.ErrNotExist", err)
	}
}
