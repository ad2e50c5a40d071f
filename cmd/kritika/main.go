package main

import (
	"os"

	"github.com/wonny/kritika/cmd/kritika/commands"
)

// main is the entry point for the Kritika CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/kritika [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
