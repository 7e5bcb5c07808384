// Package db embeds the database schema and the bundled seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Seed is the bundled YAML catalog, promotion and pincode fixture. The
// memory store loads it when no seed file is configured.
//
//go:embed seed/seed.yaml
var Seed []byte
