package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/udemyfetch/udemyfetch/course"
	"github.com/udemyfetch/udemyfetch/udemy"
)

func printFatalError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func main() {
	cfg, err := parseArgs()
	if err != nil {
		printFatalError(err)
		flag.Usage()
		os.Exit(1)
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx := context.Background()
	client := udemy.NewClient(cfg.Token)

	if cfg.Course == 0 {
		// No course selected: print the subscribed courses and their ids.
		courses, err := client.Courses(ctx)
		if err != nil {
			printFatalError(err)
			os.Exit(2)
		}
		for _, c := range courses {
			fmt.Printf("%12d  %s\n", c.ID, c.Title)
		}
		return
	}

	r := &course.Runner{
		Client:  client,
		Quality: cfg.Quality,
		Jobs:    cfg.Jobs,
	}
	summary, err := r.Run(ctx, cfg.Course, cfg.DestDir)
	if err != nil {
		printFatalError(err)
		os.Exit(3)
	}

	fmt.Printf("completed=%d skipped=%d failed=%d\n",
		summary.Completed, summary.Skipped, len(summary.Failed))
	for _, f := range summary.Failed {
		fmt.Fprintf(os.Stderr, "failed: %s: %v\n", f.Item, f.Err)
	}
	if len(summary.Failed) > 0 {
		os.Exit(4)
	}
}
