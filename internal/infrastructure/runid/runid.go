// Package runid generates correlation identifiers for a fleet run. The CLI
// logs the ID on its start line; it is not added to other log lines,
// metrics, or the report file.
package runid

import "github.com/google/uuid"

// New returns a fresh run correlation ID.
func New() string {
	return uuid.New().String()
}
