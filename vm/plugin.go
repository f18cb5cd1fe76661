package vm

import (
	"os"
	"path/filepath"
	"plugin"

	"github.com/arkscript-lang/ark/value"
)

// GetFunctionsMapping is the symbol name a plugin shared object must export:
// a func() map[string]value.CProc returning the names it wants registered
// into the global scope. This is a Go-idiomatic adaptation of the C ABI
// spec.md §6 describes (a `{name, native_fn}` array terminated by a null
// entry) to Go's plugin.Lookup-by-symbol-name mechanism.
const pluginEntryPoint = "GetFunctionsMapping"

// doPlugin implements PLUGIN id: resolve the imported path (interned as a
// symbol by the compiler) to a shared object, load it once, and register
// every name it exposes directly into the global scope. A path already
// loaded is a no-op, making repeated imports of the same module idempotent.
func (m *VM) doPlugin(ctx *Context, id uint16) error {
	path := m.symbolName(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plugins[path] {
		return nil
	}

	so, err := m.locatePlugin(path)
	if err != nil {
		return &ModuleError{Path: path, Message: err.Error()}
	}

	p, err := plugin.Open(so)
	if err != nil {
		return &ModuleError{Path: path, Message: err.Error()}
	}
	sym, err := p.Lookup(pluginEntryPoint)
	if err != nil {
		return &ModuleError{Path: path, Message: "missing " + pluginEntryPoint + " entry point"}
	}
	getMapping, ok := sym.(func() map[string]value.CProc)
	if !ok {
		return &ModuleError{Path: path, Message: pluginEntryPoint + " has the wrong signature"}
	}

	for name, fn := range getMapping() {
		if symID, ok := m.symbolID(name); ok {
			m.global.Set(symID, value.NativeProc(fn))
		}
	}
	m.plugins[path] = true
	return nil
}

// locatePlugin searches the importing program's own directory first, then
// every configured library path, for path+".so".
func (m *VM) locatePlugin(path string) (string, error) {
	candidates := []string{filepath.Join(m.sourceDir, path+".so")}
	for _, lp := range m.libraryPaths {
		candidates = append(candidates, filepath.Join(lp, path+".so"))
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", errPluginNotFound{path: path}
}

type errPluginNotFound struct{ path string }

func (e errPluginNotFound) Error() string {
	return "plugin not found: " + e.path + ".so"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
