// Command llamabind computes embeddings and saves or restores context state
// for llama.cpp models, from the command line or over HTTP.
package main

import (
	"os"

	"llamabind/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], cli.DefaultConfig()))
}
