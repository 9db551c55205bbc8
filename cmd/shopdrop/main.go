package main

import (
	"os"

	"github.com/awnumar/memguard"

	"github.com/naveenspark/shopdrop/cmd/shopdrop/cmd"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	code := cmd.Execute(version)
	// Wipe the access token enclave before exit; os.Exit skips defers.
	memguard.Purge()
	os.Exit(code)
}
