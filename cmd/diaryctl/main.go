package main

import (
	"os"

	"diary-backend/interfaces/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
