// Package loader mounts feature modules on the HTTP application.
//
// A feature reports whether it is enabled and registers its routes on the router it is
// given. The Manager keeps features in registration order, rejects duplicate names and
// skips disabled features when LoadAll runs.
package loader
