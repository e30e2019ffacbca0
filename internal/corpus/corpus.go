package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoCorpus is returned when the reference location does not exist.
var ErrNoCorpus = errors.New("reference corpus not found")

// Reference is one stored image of an authorized person.
type Reference struct {
	Name string
	Path string
	Data []byte
}

// Bytes returns the encoded image. File-backed references are read on demand so
// that an early match never touches the rest of the corpus.
func (r Reference) Bytes() ([]byte, error) {
	if r.Data != nil {
		return r.Data, nil
	}
	if r.Path == "" {
		return nil, fmt.Errorf("reference %q has no data", r.Name)
	}
	return os.ReadFile(r.Path)
}

// Source enumerates the reference corpus. Implementations must list it fresh on
// every call and always in the same order.
type Source interface {
	References(ctx context.Context) ([]Reference, error)
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// Dir is a Source backed by a flat directory of image files.
type Dir struct {
	Path string
}

// NewDir returns a directory-backed Source.
func NewDir(path string) *Dir {
	return &Dir{Path: path}
}

// References lists the image files in the directory, sorted by name.
func (d *Dir) References(ctx context.Context) ([]Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCorpus, d.Path)
		}
		return nil, fmt.Errorf("read corpus dir %s: %w", d.Path, err)
	}

	refs := make([]Reference, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		refs = append(refs, Reference{Name: name, Path: filepath.Join(d.Path, name)})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (d *Dir) String() string {
	return "dir:" + d.Path
}

// Stat summarizes a corpus for display.
type Stat struct {
	Name string
	Size int64
}

// Describe enumerates src and reports the size of every reference. Sizes of
// references that cannot be read are reported as -1.
func Describe(ctx context.Context, src Source) ([]Stat, error) {
	refs, err := src.References(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]Stat, 0, len(refs))
	for _, r := range refs {
		size := int64(len(r.Data))
		if r.Data == nil {
			size = -1
			if info, err := os.Stat(r.Path); err == nil {
				size = info.Size()
			}
		}
		stats = append(stats, Stat{Name: r.Name, Size: size})
	}
	return stats, nil
}
