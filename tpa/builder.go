package tpa

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ListSeparator joins entries in the built trust list. Every appended path
// is terminated by it, so the list is a semicolon-terminated sequence.
const ListSeparator = ";"

// DefaultExtensions is the fixed scan order. Optimized-image patterns come
// first so that an ni image is the entry retained when it coexists with the
// plain assembly in the same directory.
var DefaultExtensions = []string{"*.ni.dll", "*.dll", "*.ni.exe", "*.exe"}

// Builder constructs the trusted-platform-assembly list from an ordered set
// of candidate directories. The list is built lazily on first request and
// cached for the process lifetime; directory contents are not re-scanned.
type Builder struct {
	dirs []string
	exts []string
	log  *zap.Logger

	once  sync.Once
	list  string
	index map[string]string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger attaches a logger. The default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// WithExtensions overrides the extension scan order.
func WithExtensions(patterns []string) Option {
	return func(b *Builder) { b.exts = patterns }
}

// NewBuilder creates a Builder over candidate directories in priority
// order. Earlier directories win name collisions against later ones.
func NewBuilder(dirs []string, opts ...Option) *Builder {
	b := &Builder{
		dirs: dirs,
		exts: DefaultExtensions,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// List returns the semicolon-terminated trust list. Each logical assembly
// name appears at most once; order reflects discovery order.
func (b *Builder) List() string {
	b.once.Do(b.build)
	return b.list
}

// Resolve returns the trusted path registered for an assembly name, looked
// up by logical name. It forces the build if it has not happened yet.
func (b *Builder) Resolve(name string) (string, bool) {
	b.once.Do(b.build)
	path, ok := b.index[LogicalName(name)]
	return path, ok
}

func (b *Builder) build() {
	var list strings.Builder
	b.index = make(map[string]string)

	for _, dir := range b.dirs {
		if dir == "" {
			continue
		}
		b.log.Info("adding assemblies to the TPA list", zap.String("dir", dir))
		b.addDir(&list, dir)
	}
	b.list = list.String()
}

// addDir scans one directory across all extension patterns. Extensions
// match case-insensitively, the way logical names case-fold. A directory
// that does not exist or cannot be read contributes nothing.
func (b *Builder) addDir(list *strings.Builder, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, pattern := range b.exts {
		suffix := strings.TrimPrefix(pattern, "*")
		for _, entry := range entries {
			if !hasSuffixFold(entry.Name(), suffix) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}

			// Only the first instance of a simple assembly name is
			// included. The runtime does not reliably prefer the first
			// list occurrence on its own, and first-writer-wins is what
			// lets CORE_LIBRARIES override framework assemblies.
			name := LogicalName(filepath.Base(path))
			if _, seen := b.index[name]; seen {
				b.log.Info("skipping assembly, name already on the TPA list",
					zap.String("path", path))
				continue
			}
			b.index[name] = path
			list.WriteString(path)
			list.WriteString(ListSeparator)
		}
	}
}

func hasSuffixFold(name, suffix string) bool {
	return len(name) >= len(suffix) &&
		strings.EqualFold(name[len(name)-len(suffix):], suffix)
}

// LogicalName case-folds a file name and strips the extension plus a
// trailing ".ni" optimized-image marker, so foo.dll, FOO.DLL and
// foo.ni.dll all collapse to "foo". A name too short to carry the marker
// is left alone.
func LogicalName(fileName string) string {
	name := strings.ToLower(fileName)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	if len(name) > 3 && strings.HasSuffix(name, ".ni") {
		name = name[:len(name)-3]
	}
	return name
}
