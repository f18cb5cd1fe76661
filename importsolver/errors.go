package importsolver

import "strings"

// ModuleError is raised when a package named by an `(import ...)` form
// cannot be located in the importer's directory or any library path.
type ModuleError struct {
	Package []string
	Message string
}

func (e *ModuleError) Error() string {
	return "module `" + strings.Join(e.Package, ".") + "': " + e.Message
}
