// Command cascbridge runs the Blender to Cascadeur trigger exchange.
package main

import (
	"context"
	"os"

	"github.com/roach88/cascbridge/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
