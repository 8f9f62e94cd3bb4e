// Package main is the entry point for the ip-sniffer CLI.
//
// ip-sniffer is a concurrent TCP-connect port scanner. All functionality
// lives in the internal/cli package; main only injects build information
// and hands over to cli.Execute, which owns exit codes.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release build. During development they default to "dev",
// "none" and "unknown".
package main

import (
	"github.com/mmr-tortoise/ip-sniffer/internal/cli"
)

// version, commit, and date are set at build time via ldflags, e.g.
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
