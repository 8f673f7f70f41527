package main

import (
	"fmt"
	"os"

	"github.com/legit-games/user-registry/cmd/usermgmt/cli"
)

// Set via -ldflags at build time
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
