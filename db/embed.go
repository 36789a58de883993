// Package db embarque le schéma SQL de la base relationnelle.
package db

import _ "embed"

// Schema contient le DDL de toutes les tables.
//
//go:embed migrations/001_schema.sql
var Schema string
