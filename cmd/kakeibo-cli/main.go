// kakeibo-cli is a terminal client for the ledger service.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(subcommands.HelpCommand(), "")
	commander.Register(&listCmd{}, "ledger")
	commander.Register(&addCmd{}, "ledger")
	commander.Register(&summaryCmd{}, "ledger")
	commander.Register(&exportCmd{}, "backup")
	commander.Register(&importCmd{}, "backup")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// serverURL resolves the API base URL: flag first, then environment,
// then the local default.
func serverURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("KAKEIBO_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8080"
}
