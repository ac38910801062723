// Package integrity provides health checks for the mirror's infrastructure.
//
// # Checks Provided
//
//   - Schema: Validates that the database tables carry every column of the registered
//     models and that primary keys match.
//   - Storage: Checks that the snapshot bucket exists and whether a snapshot has been
//     exported. The bucket can be created on request.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/schema : Runs the schema check.
//   - GET /integrity/storage : Runs the storage check (supports ?fix=true).
package integrity
