package main

import (
	"os"

	relayer "github.com/lockburn/bridge-relayer"
	"github.com/urfave/cli/v2"
)

func versionCmd(*cli.Context) error {
	relayer.PrintVersion(os.Stdout)
	return nil
}
