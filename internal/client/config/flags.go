package config

import (
	"flag"
	"os"
	"time"

	"github.com/dvoronkov/echofeed/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the feed API (default from Config)
//	-t int      request timeout in seconds (default from Config)
//	-d string   sqlite DSN of the local store (default from Config)
//	-p int      feed page size (default from Config)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-d", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the feed API")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.LocalStoreDSN, "d", cfg.LocalStoreDSN, "sqlite DSN of the local store")
	fs.IntVar(&cfg.PageSize, "p", cfg.PageSize, "feed page size")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
