// Package javalocate discovers Java installations usable as JAVA_HOME.
//
// Candidates come from JAVA_HOME, java binaries on PATH, the platform's
// usual install roots and any configured search paths. A candidate counts
// only if it carries a "release" file, which is where the version and
// architecture labels are read from.
package javalocate

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cacheKey = "jvms"

// JVM is one discovered installation.
type JVM struct {
	Version string `json:"version"`
	Arch    string `json:"arch"`
	Home    string `json:"home"`
}

// Label renders the human-readable "<version> (<arch>)" form.
func (j JVM) Label() string {
	return fmt.Sprintf("%s (%s)", j.Version, j.Arch)
}

// Config controls discovery.
type Config struct {
	// SearchPaths are extra directories that are either a Java home or
	// contain Java homes.
	SearchPaths []string

	// VersionFilter keeps only versions with this prefix (e.g. "1.8").
	// Empty keeps everything.
	VersionFilter string

	// CacheTTL is how long a discovery result is reused. Zero disables caching.
	CacheTTL time.Duration
}

// Logger defines the logging interface for the locator.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Locator finds JVMs and caches the result.
type Locator struct {
	cfg    Config
	cache  *gocache.Cache
	logger Logger

	getenv func(string) string
	roots  []string
}

// New creates a locator scanning the platform's default install roots.
func New(cfg Config) *Locator {
	l := &Locator{
		cfg:    cfg,
		logger: noopLogger{},
		getenv: os.Getenv,
		roots:  defaultRoots(runtime.GOOS),
	}
	if cfg.CacheTTL > 0 {
		l.cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return l
}

// SetLogger sets the logger for the locator.
func (l *Locator) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Find returns the installations matching the version filter, without
// duplicates, in discovery order.
func (l *Locator) Find(ctx context.Context) ([]JVM, error) {
	if l.cache != nil {
		if cached, ok := l.cache.Get(cacheKey); ok {
			if jvms, ok := cached.([]JVM); ok {
				return jvms, nil
			}
		}
	}

	seen := make(map[string]bool)
	var jvms []JVM
	for _, home := range l.candidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := canonical(home)
		if seen[key] {
			continue
		}
		jvm, ok := readRelease(home)
		if !ok {
			continue
		}
		seen[key] = true
		if l.cfg.VersionFilter != "" && !strings.HasPrefix(jvm.Version, l.cfg.VersionFilter) {
			l.logger.Debug("skipping jvm outside version filter", "home", home, "version", jvm.Version)
			continue
		}
		jvms = append(jvms, jvm)
	}

	if l.cache != nil {
		l.cache.SetDefault(cacheKey, jvms)
	}
	return jvms, nil
}

// Invalidate drops any cached discovery result.
func (l *Locator) Invalidate() {
	if l.cache != nil {
		l.cache.Delete(cacheKey)
	}
}

// Pairs flattens jvms into the interleaved [label, home, label, home, ...]
// form returned by getJavas.
func Pairs(jvms []JVM) []string {
	out := make([]string, 0, 2*len(jvms))
	for _, j := range jvms {
		out = append(out, j.Label(), j.Home)
	}
	return out
}

// candidates lists possible homes in priority order.
func (l *Locator) candidates() []string {
	var homes []string
	if jh := l.getenv("JAVA_HOME"); jh != "" {
		homes = append(homes, jh)
	}
	homes = append(homes, homesFromPath(l.getenv("PATH"))...)
	for _, root := range append(append([]string(nil), l.roots...), l.cfg.SearchPaths...) {
		homes = append(homes, homesUnder(root)...)
	}
	return homes
}

// homesFromPath maps every java binary on PATH to its home directory.
func homesFromPath(pathEnv string) []string {
	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}
	var homes []string
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		bin := filepath.Join(dir, name)
		if _, err := os.Stat(bin); err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(bin); err == nil {
			bin = resolved
		}
		home := filepath.Dir(filepath.Dir(bin))
		// A JDK 8 ships its runtime as <jdk>/jre/bin/java.
		if filepath.Base(home) == "jre" {
			homes = append(homes, filepath.Dir(home))
		}
		homes = append(homes, home)
	}
	return homes
}

// homesUnder treats root as a home itself or as a directory of homes.
// macOS bundles keep the home under Contents/Home.
func homesUnder(root string) []string {
	if hasRelease(root) {
		return []string{root}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var homes []string
	for _, e := range entries {
		if !e.IsDir() && e.Type()&os.ModeSymlink == 0 {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if bundle := filepath.Join(dir, "Contents", "Home"); hasRelease(bundle) {
			homes = append(homes, bundle)
			continue
		}
		homes = append(homes, dir)
	}
	return homes
}

func hasRelease(home string) bool {
	info, err := os.Stat(filepath.Join(home, "release"))
	return err == nil && !info.IsDir()
}

// readRelease parses <home>/release for JAVA_VERSION and OS_ARCH.
func readRelease(home string) (JVM, bool) {
	f, err := os.Open(filepath.Join(home, "release")) //nolint:gosec // path built from discovered homes
	if err != nil {
		return JVM{}, false
	}
	defer f.Close()

	jvm := JVM{Home: filepath.Clean(home)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch strings.TrimSpace(key) {
		case "JAVA_VERSION":
			jvm.Version = value
		case "OS_ARCH":
			jvm.Arch = value
		}
	}
	if jvm.Version == "" {
		return JVM{}, false
	}
	if jvm.Arch == "" {
		jvm.Arch = runtime.GOARCH
	}
	return jvm, true
}

func canonical(home string) string {
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		return resolved
	}
	return filepath.Clean(home)
}

func defaultRoots(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"/Library/Java/JavaVirtualMachines", "/System/Library/Java/JavaVirtualMachines"}
	case "windows":
		var roots []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
			base := os.Getenv(env)
			if base == "" {
				continue
			}
			for _, vendor := range []string{"Java", "Eclipse Adoptium", "AdoptOpenJDK", "Zulu", "Amazon Corretto"} {
				roots = append(roots, filepath.Join(base, vendor))
			}
		}
		return roots
	default:
		return []string{"/usr/lib/jvm", "/usr/java", "/opt/java", "/usr/local/java"}
	}
}
