package main

import "time"

type Options struct {
	Config     string        `short:"c" long:"config" description:"YAML config file" required:"true"`
	Method     string        `short:"m" long:"method" description:"JSON-RPC method" required:"true"`
	Params     string        `short:"p" long:"params" description:"JSON params" default:"[]"`
	Idempotent bool          `short:"i" long:"idempotent" description:"declare the call idempotent; enables retries and caching"`
	Threshold  int           `short:"t" long:"threshold" description:"providers that must agree; overrides multi.threshold when > 0"`
	Provider   string        `long:"provider" description:"call this provider only"`
	Timeout    time.Duration `long:"timeout" description:"overall timeout" default:"30s"`
}
