package main

import (
	"github.com/ordana/payments/cmd"

	// import the serve command tree
	_ "github.com/ordana/payments/cmd/serve"
)

var (
	// version of the compiled binary, overridden at build time with ldflags
	version   = "dev"
	commit    string
	buildTime string
)

func main() {
	cmd.Execute(version, commit, buildTime)
}
