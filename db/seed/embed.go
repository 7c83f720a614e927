package seed

import _ "embed"

// Catalog is the default catalog applied by the seed command.
//
//go:embed catalog.yml
var Catalog []byte
