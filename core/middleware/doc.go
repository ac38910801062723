// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation through the X-API-Key header. Disabled when no key is configured.
//   - rayid: assigns every request a RayID (UUID), stored in locals and echoed in the
//     X-Ray-ID response header for tracing.
//
// The start command registers rayid first so every later log line carries the RayID.
package middleware
