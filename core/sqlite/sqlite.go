// Package sqlite selects the SQLite driver the catalog runs on.
//
// The default build uses the pure Go modernc.org/sqlite driver so the
// toolkit cross-compiles to a single static binary. Building with
// CGO_ENABLED=1 and -tags cgo_sqlite swaps in mattn/go-sqlite3 via
// contrib/sqlite-external for deployments with very large catalogs.
//
// Use Open instead of sql.Open so the registered driver name matches
// the build mode.
package sqlite

import "database/sql"

// DriverType identifies the compiled-in implementation, "purego" or
// "cgo". The dashboard health endpoint reports it so a deployment can
// be checked without inspecting the binary.
func DriverType() string {
	return driverType
}

// DriverPackage names the Go package providing the driver.
func DriverPackage() string {
	return driverPackage
}

// Open opens a SQLite database through the selected driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens an existing database without write access.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open(path + "?mode=ro")
}
