package main

import (
	"fmt"
	"os"

	relayer "github.com/lockburn/bridge-relayer"
	"github.com/urfave/cli/v2"
)

const (
	flagCfg     = "cfg"
	flagNetwork = "network"
	flagDown    = "down"
)

const (
	// App name
	appName = "bridge-relayer"
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Version = relayer.Version
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     flagCfg,
			Aliases:  []string{"c"},
			Usage:    "Configuration `FILE`",
			Required: false,
		},
		&cli.StringFlag{
			Name:     flagNetwork,
			Aliases:  []string{"n"},
			Usage:    "Network: sepolia-bsctestnet, local. By default the chains come from the config file",
			Required: false,
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Application version and build",
			Action:  versionCmd,
		},
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the relayer: webhook API, push consumers and chain observers",
			Action:  runAll,
			Flags:   flags,
		},
		{
			Name:    "api",
			Aliases: []string{},
			Usage:   "Run the relayer fed by the webhook API and the push consumers only",
			Action:  runAPI,
			Flags:   flags,
		},
		{
			Name:    "observer",
			Aliases: []string{},
			Usage:   "Run the relayer fed by the chain observers only",
			Action:  runObserver,
			Flags:   flags,
		},
		{
			Name:    "migrate",
			Aliases: []string{},
			Usage:   "Apply the database migrations",
			Action:  migrate,
			Flags: append(flags, &cli.BoolFlag{
				Name:  flagDown,
				Usage: "Revert the migrations instead",
			}),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", err)
		os.Exit(1)
	}
}
