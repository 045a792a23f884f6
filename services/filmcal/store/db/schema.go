package db

import (
	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Schema is the per-run scrape results database.
//
//go:embed schema.sql
var Schema string

// UploadSchema is the website-facing database pushed by the upload step.
//
//go:embed upload_schema.sql
var UploadSchema string
