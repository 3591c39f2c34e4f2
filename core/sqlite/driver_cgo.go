//go:build cgo_sqlite

package sqlite

import (
	_ "github.com/headcamlab/headcam/contrib/sqlite-external" // registers mattn/go-sqlite3
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)
