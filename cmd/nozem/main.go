// Command nozem builds JS/TS monorepo packages hermetically, keyed by the
// content hash of their declared inputs, serving repeat builds from a
// tiered artifact cache.
package main

import (
	"os"

	"github.com/nozem-build/nozem/internal/nozem"
)

// Build-time variables set by ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(nozem.Main(version, commit))
}
