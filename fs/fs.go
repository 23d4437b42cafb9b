package appfs

import "embed"

// FS holds the files shipped inside the binaries.
// Templates are embedded with all: so that the _base layouts are kept.
//go:embed migrations/*.sql all:templates assets
var FS embed.FS
