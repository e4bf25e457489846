// cmd/candymint/main.go
package main

import (
	"os"

	"candymint/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
