// Package stores persists sync run history in a local SQLite database.
// The schema is managed with embedded golang-migrate migrations. The store
// is an audit trail only: the engine never reads it back to decide what to
// create, since reruns always replay the full plan.
package stores
