// Package stories mirrors the Hacker News top stories into a local table.
//
// A Source delivers the authoritative set of item payloads: the Hacker News Firebase
// API, or a snapshot previously exported to object storage. The Service reconciles the
// story table against it with core/reconcile, so stories that left the top list are
// deleted, new ones inserted and the rest overwritten in place.
//
// # Payloads
//
// Items are decoded into Payload maps with numbers kept as json.Number. The Adapter
// maps id, time, title, url, by and score onto Story. A payload whose id is missing or
// whose mapped fields have the wrong type is skipped and reported, never written.
//
// # Fetching
//
// HackerNewsSource fetches the top list, then the first Limit items concurrently with
// an errgroup, paced by a token bucket. Any failed request fails the whole fetch: a
// partial set would delete the missing stories from the mirror.
//
// # HTTP
//
//	GET  /stories               newest first, ?limit=N
//	GET  /stories/status        mirror size and last refresh report
//	GET  /stories/{id}          one story
//	POST /stories/refresh       ?dry_run=true&mode=streaming&force=true
//	POST /stories/{id}/refresh  fetch and upsert one story
//	POST /stories/snapshot      export the mirror to object storage
package stories
