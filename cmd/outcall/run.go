package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jessevdk/go-flags"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/client"
	"github.com/unkn0wn-root/outcall/config"
	"github.com/unkn0wn-root/outcall/jsonrpc"
	"github.com/unkn0wn-root/outcall/multi"
)

// Run parses args, performs the call and writes the report to w. It fails
// when no result was agreed on.
func Run(args []string, w io.Writer) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	cfg, err := config.Load(options.Config)
	if err != nil {
		return err
	}
	logger, sync, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), options.Timeout)
	defer cancel()

	copts, err := cfg.ClientOptions(ctx, config.Deps{Logger: logger})
	if err != nil {
		return err
	}
	c, err := client.New(copts)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(context.Background()) }()

	var ropts []jsonrpc.RequestOption
	if options.Idempotent {
		ropts = append(ropts, jsonrpc.Idempotent())
	}
	req, err := jsonrpc.NewRequest(options.Method, json.RawMessage(options.Params), ropts...)
	if err != nil {
		return err
	}
	logger.Debug("outcall.cli_request", outcall.Fields{"id": req.RequestID(), "method": req.Method()})

	if options.Provider != "" {
		resp, err := c.Call(ctx, options.Provider, req)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "result: %s\n", resp.Result)
		return err
	}

	threshold := cfg.Multi.Threshold
	if options.Threshold > 0 {
		threshold = options.Threshold
	}
	resp, res, err := c.Consensus(ctx, req, threshold)
	if res != nil {
		report(w, res)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "result: %s\n", resp.Result)
	return err
}

func report(w io.Writer, res *multi.Results[string, *jsonrpc.Response]) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	res.Range(func(r multi.Result[string, *jsonrpc.Response]) bool {
		if r.OK() {
			fmt.Fprintf(tw, "%s\tok\t%s\n", r.Key, r.Value.Result)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%v\n", r.Key, outcall.Label(r.Err), r.Err)
		}
		return true
	})
	_ = tw.Flush()
}
