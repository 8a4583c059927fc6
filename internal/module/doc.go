// Package module is the module system: it describes the extension modules
// compiled into the binary and the immutable module sets built from them.
//
// Every Go module implements Provider. Its Register method declares the
// types the module contributes, each with capability tags that tell the
// registries how to pick the type up (component record, event record, type
// handler, handler factory, copy-constructible value, auto config). A module
// also has a manifest, read from a module.hcl file next to its assets.
//
// A Set is the resolved environment for one generation. It orders modules so
// that every module follows its dependencies, indexes declarations by tag,
// and answers which module provides a given Go type.
package module
