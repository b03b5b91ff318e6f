package main

import (
	"os"

	ragstorecmder "github.com/contextlab/ragstore/cmd/ragstore"
)

func main() {
	cmd := ragstorecmder.NewRagstoreCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
