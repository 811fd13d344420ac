package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var version = "dev"

// GlobalFlags are accepted by every command.
type GlobalFlags struct {
	API     string
	Token   string
	Project string
	JSON    bool
}

func main() {
	globals := GlobalFlags{}
	fs := flag.NewFlagSet("lupactl", flag.ContinueOnError)
	fs.StringVar(&globals.API, "api", envOr("LUPA_API_URL", "http://localhost:3000"), "API base URL")
	fs.StringVar(&globals.Token, "token", os.Getenv("LUPA_TOKEN"), "bearer token")
	fs.StringVarP(&globals.Project, "project", "p", os.Getenv("LUPA_PROJECT"), "project id")
	fs.BoolVar(&globals.JSON, "json", false, "print raw JSON")
	showVersion := fs.Bool("version", false, "show version and exit")
	fs.SetInterspersed(false)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `lupactl - operate a Lupa backend

Usage:
  lupactl [global options] <command> [options]

Commands:
  projects      List projects
  documents     List documents of a folder
  ingest        Add a website or file URL as a document
  refresh       Start a new snapshot of a document
  bulk          Ingest many website URLs
  resolve       Resolve a document path to a snapshot
  deployments   List deployments
  deploy        Create a deployment
  promote       Promote a deployment to production
  demote        Demote the production deployment to staging
  search        Search a deployment

Global Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("lupactl version %s\n", version)
		return
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fail(fmt.Errorf("unknown command: %s", args[0]))
	}
	if err := cmd(args[1:], globals); err != nil {
		fail(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
