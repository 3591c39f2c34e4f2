// Package sqliteexternal registers the optional CGO SQLite driver.
//
// The stock build runs the catalog on the pure Go modernc.org/sqlite
// driver and needs nothing from this package. Catalogs that outgrow it
// can opt into mattn/go-sqlite3 instead:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/headcam
//
// The tag makes core/sqlite import this package, which pulls in the
// CGO driver and its registration under the "sqlite3" name. Keeping
// the import here rather than in core/sqlite keeps the CGO dependency
// out of the default build graph.
package sqliteexternal
