// Command demctl is the entry point for the demography pipeline CLI.
package main

import (
	"os"

	"github.com/gloodata/ext-go-demography/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
