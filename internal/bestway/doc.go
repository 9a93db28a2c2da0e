// Package bestway talks to the Bestway/Lay-Z-Spa cloud API and keeps an
// optimistic local cache of device state in front of it.
//
// The cloud is eventually consistent and aggressively rate limited, so
// the package never reads back state after a write. Instead every
// successful control POST updates the cache immediately with the
// commanded values (plus the side effects the firmware applies on its
// own), stamped with the local wall-clock time. Poll results only
// replace a cache entry when the server timestamp is at least as new as
// the local one; older reads are discarded so a slow replica cannot
// roll back a command the user just issued.
//
// Client is safe for concurrent use. All lookups return copies; callers
// never share memory with the cache.
package bestway
