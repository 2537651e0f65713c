// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// syncCommand runs the full collection sync pipeline
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Download new collection purchases into the library",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Maximum concurrent downloads",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Re-download items even when the manifest marks them complete",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be downloaded without fetching anything",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Stop after this many downloads",
			},
			&cli.StringFlag{
				Name:  "after",
				Usage: "Only sync items purchased on or after this date (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Download format (flac, mp3-320, mp3-v0, ...)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Library root directory (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit the hand-off JSON instead of a plain summary",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write a Markdown report and hand-off JSON using this base path",
			},
			&cli.BoolFlag{
				Name:  "ui",
				Usage: "Show interactive progress view",
			},
		},
		Action: r.Sync,
	}
}

// cacheCommand inspects and manages the download manifest
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and manage the download manifest",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List manifest entries with status and on-disk size",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "clear",
				Usage: "Remove one entry by ID, or all entries",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.CacheClear,
			},
			{
				Name:   "path",
				Usage:  "Print the manifest database path",
				Action: r.CachePath,
			},
		},
	}
}

// authCommand handles session capture and inspection
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Bandcamp session",
		Commands: []*cli.Command{
			{
				Name:  "setup",
				Usage: "Capture a browser session from exported cookies",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "cookies",
						Usage: "Path to an exported cookie file (Netscape or Firefox JSON)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing a copied browser cURL request",
					},
				},
				Action: r.AuthSetup,
			},
			{
				Name:   "status",
				Usage:  "Check whether the stored session is still valid",
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand initializes config and the manifest database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and initialize the manifest database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
		},
		Action: r.Setup,
	}
}

// reportCommand emits the downstream hand-off
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print completed downloads as an item-ID/path hand-off",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write manifest entries to a CSV file instead",
			},
		},
		Action: r.Report,
	}
}
