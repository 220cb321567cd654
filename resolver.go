package clrmeta

import (
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

var probeExtensions = []string{".dll", ".exe"}

// AssemblyResolver maps an AssemblyDescriptor to a loaded
// AssemblyDefinition via directory probing, per spec.md §4.H. Resolve is
// deterministic and idempotent: the cache strongly owns every resolved
// assembly, and concurrent calls for the same descriptor are coalesced so
// only one load ever runs.
type AssemblyResolver struct {
	searchDirectories []string
	opts              *Options

	cache  sync.Map // cacheKey string -> *AssemblyDefinition
	flight singleflight.Group
}

// NewAssemblyResolver creates a resolver that probes dirs in order.
func NewAssemblyResolver(dirs []string, opts *Options) *AssemblyResolver {
	return &AssemblyResolver{searchDirectories: dirs, opts: opts}
}

// SearchDirectories returns the resolver's configured probe directories.
func (r *AssemblyResolver) SearchDirectories() []string { return r.searchDirectories }

// Resolve returns the AssemblyDefinition matching desc, or nil if none of
// the search directories holds a matching file. It never errors for "not
// found"; an error return means something else went wrong (a malformed
// file was found and failed to load).
func (r *AssemblyResolver) Resolve(desc AssemblyDescriptor) (*AssemblyDefinition, error) {
	key := desc.cacheKey()
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*AssemblyDefinition), nil
	}

	result, err, _ := r.flight.Do(key, func() (any, error) {
		if cached, ok := r.cache.Load(key); ok {
			return cached.(*AssemblyDefinition), nil
		}
		path, err := r.probeSearchDirectories(desc)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return (*AssemblyDefinition)(nil), nil
		}
		asm, err := FromFile(path, r.opts)
		if err != nil {
			return nil, err
		}
		r.cache.Store(key, asm)
		return asm, nil
	})
	if err != nil {
		return nil, err
	}
	asm, _ := result.(*AssemblyDefinition)
	return asm, nil
}

// probeSearchDirectories walks r.searchDirectories in order; within each
// directory it tries, in order: "D/culture/name.ext" (or "D/name.ext" when
// culture is empty) for each probeExtension, then the name-as-folder
// layout "D/culture/name/name.ext", continuing to the next directory on
// full exhaustion (spec.md §4.H).
func (r *AssemblyResolver) probeSearchDirectories(desc AssemblyDescriptor) (string, error) {
	for _, dir := range r.searchDirectories {
		base := dir
		if desc.Culture != "" {
			base = filepath.Join(dir, desc.Culture)
		}
		direct := filepath.Join(base, desc.Name)

		for _, ext := range probeExtensions {
			candidate := direct + ext
			if fileExists(candidate) {
				return candidate, nil
			}
		}
		for _, ext := range probeExtensions {
			candidate := filepath.Join(direct, desc.Name+ext)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
