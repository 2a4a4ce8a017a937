package main

import (
	"os"

	"github.com/marcohefti/agent-arena/internal/cli"
)

var version = "0.0.0-dev"

func main() {
	os.Exit(cli.Execute(version))
}
