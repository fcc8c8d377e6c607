package native

import (
	"strings"
	"unsafe"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-dstub/dstub/pkg/target"
)

const moduleNameCacheSize = 128

// moduleNameCache remembers resolved module paths by module handle.
// Enumerations are frequent and module paths are stable for the lifetime of
// a mapping; the enumeration contract is best effort anyway, so a stale hit
// after handle reuse is acceptable.
type moduleNameCache struct {
	cache *lru.Cache
}

func newModuleNameCache() *moduleNameCache {
	c, _ := lru.New(moduleNameCacheSize)
	return &moduleNameCache{cache: c}
}

func (mc *moduleNameCache) resolve(dbp *Process, m Handle) (string, error) {
	if name, ok := mc.cache.Get(m); ok {
		return name.(string), nil
	}
	name, err := dbp.api.ModuleFileName(dbp.handle, m)
	if err != nil {
		return "", err
	}
	mc.cache.Add(m, name)
	return name, nil
}

// EnumerateSharedLibraries lists the modules currently loaded in the target
// and invokes visit once per module, in enumeration order. The first module
// is the main executable. The module list can change between the sizing
// pass and the fill pass; the result is a best-effort snapshot, not a
// transactional one.
func (dbp *Process) EnumerateSharedLibraries(visit func(target.SharedLibraryInfo)) error {
	bytesNeeded, err := dbp.api.EnumProcessModules(dbp.handle, nil)
	if err != nil {
		return dbp.platform.TranslateError(err)
	}

	handleSize := int(unsafe.Sizeof(Handle(0)))
	modules := make([]Handle, bytesNeeded/handleSize)
	bytesNeeded, err = dbp.api.EnumProcessModules(dbp.handle, modules)
	if err != nil {
		return dbp.platform.TranslateError(err)
	}
	if n := bytesNeeded / handleSize; n < len(modules) {
		modules = modules[:n]
	}

	for i, m := range modules {
		name, err := dbp.pathCache.resolve(dbp, m)
		if err != nil {
			return dbp.platform.TranslateError(err)
		}

		sl := target.SharedLibraryInfo{
			Main: i == 0,
			Path: normalizeModulePath(name),
			// Windows modules have a single section, the module base.
			Sections: []uint64{uint64(m)},
		}
		visit(sl)
	}

	return nil
}

// normalizeModulePath rewrites a native module path into a POSIX-style one.
// Remote debuggers mishandle paths when host and target disagree on the
// separator, so the drive prefix is stripped and backslashes become forward
// slashes.
func normalizeModulePath(path string) string {
	if len(path) >= 2 && path[1] == ':' &&
		((path[0] >= 'A' && path[0] <= 'Z') || (path[0] >= 'a' && path[0] <= 'z')) {
		path = path[2:]
	}
	return strings.ReplaceAll(path, "\\", "/")
}
