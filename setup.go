package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Token   string // Session access token for the vendor API.
	Course  int64  // ID of the course to download; 0 lists courses instead.
	DestDir string // Destination root for downloaded courses.
	Quality string // Requested video quality label; "" picks the best.
	Verbose bool   // True for verbose output.
	Jobs    int    // Number of lecture downloads to run in parallel.
}

func parseArgs() (*Config, error) {
	token := flag.String("token", "", "access token (defaults to UDEMY_TOKEN)")
	course := flag.Int64("course", 0, "course id to download (omit to list courses)")
	dest := flag.String("o", "Downloads", "destination directory")
	quality := flag.String("q", "", "video quality label, e.g. 720 (default: best)")
	verbose := flag.Bool("v", false, "verbose output")
	jobs := flag.Int("j", 1, "jobs")

	flag.Usage = usage
	flag.Parse()

	tok := *token
	if tok == "" {
		tok = os.Getenv("UDEMY_TOKEN")
	}
	if tok == "" {
		return nil, fmt.Errorf("missing access token: pass -token or set UDEMY_TOKEN")
	}

	return &Config{
		Token:   tok,
		Course:  *course,
		DestDir: *dest,
		Quality: *quality,
		Verbose: *verbose,
		Jobs:    *jobs,
	}, nil
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [option]...\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(flag.CommandLine.Output(), "Downloads a subscribed course into a local directory tree.\n")
	flag.PrintDefaults()
}
