// Package server holds the HTTP server configuration.
//
// The start command builds the Fiber application; this package only defines where it
// listens and whether the API key middleware is active.
package server
