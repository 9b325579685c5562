package main

import (
	"os"

	"rhystmorgan/tokenSend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
