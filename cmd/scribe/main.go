package main

import (
	"os"

	"github.com/dshills/scribe/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
