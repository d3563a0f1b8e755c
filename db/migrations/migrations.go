// Package migrations embeds the reference schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
