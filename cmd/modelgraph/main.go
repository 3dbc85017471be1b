// Package main provides the modelgraph command.
//
// Build metadata is injected with -ldflags, for example:
//
//	go build -ldflags "-X github.com/leapstack-labs/modelgraph/internal/cli.Version=1.0.0" ./cmd/modelgraph
package main

import (
	"context"
	"os"

	"github.com/leapstack-labs/modelgraph/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
