// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema contains the DDL for all storefront tables. The statements are
// idempotent, so re-applying on every startup is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
