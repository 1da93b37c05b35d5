package main

import "flag"

// Options holds CLI options for the daemon.
type Options struct {
	ConfigPath string
	// Service overrides listen.service when non-empty
	Service string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("sockd", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
	fs.StringVar(&opts.Service, "service", "", "Port or service name to listen on (overrides config)")
	_ = fs.Parse(args)
	return opts
}
