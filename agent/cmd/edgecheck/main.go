// Command edgecheck runs a single edge query against Prometheus and prints
// the result.
//
//	edgecheck -prometheus http://localhost:9090 -query 'up{job="node"}' -from 1 -to 0 -max-age 1h
//
// Exit status is 0 when the query succeeds (edge or no edge), 1 on any
// error and 2 on bad flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/promedge/agent/internal/config"
	"github.com/obsidianstack/promedge/agent/internal/transport"
	"github.com/obsidianstack/promedge/pkg/edge"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	prometheus string
	query      string
	from, to   uint64
	maxAge     time.Duration
	start, end uint64
	timeout    time.Duration
	tokenEnv   string
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("edgecheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.prometheus, "prometheus", "http://localhost:9090", "base URL of the Prometheus server")
	fs.StringVar(&o.query, "query", "", "PromQL expression (required)")
	fs.Uint64Var(&o.from, "from", 0, "threshold the series leaves")
	fs.Uint64Var(&o.to, "to", 0, "threshold the series reaches")
	fs.DurationVar(&o.maxAge, "max-age", config.DefaultMaxAge, "lookback window ending now; ignored when -start/-end are set")
	fs.Uint64Var(&o.start, "start", 0, "window start, unix seconds")
	fs.Uint64Var(&o.end, "end", 0, "window end, unix seconds")
	fs.DurationVar(&o.timeout, "timeout", config.DefaultQueryTimeout, "range query timeout")
	fs.StringVar(&o.tokenEnv, "token-env", "", "environment variable holding a bearer token")
	fs.BoolVar(&o.verbose, "v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.query == "" {
		return o, errors.New("-query is required")
	}
	if (o.start == 0) != (o.end == 0) {
		return o, errors.New("-start and -end must be given together")
	}
	if o.maxAge < 0 {
		return o, errors.New("-max-age must not be negative")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "edgecheck:", err)
		}
		return 2
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	p := config.Prometheus{Endpoint: o.prometheus, Timeout: o.timeout, Auth: config.AuthConfig{Mode: "none"}}
	if o.tokenEnv != "" {
		p.Auth = config.AuthConfig{Mode: "bearer", TokenEnv: o.tokenEnv}
	}
	hc, err := transport.New(p)
	if err != nil {
		fmt.Fprintln(stderr, "edgecheck:", err)
		return 1
	}
	det := edge.NewForURL(o.prometheus, hc, edge.WithLogger(logger))

	var (
		t     uint64
		found bool
	)
	if o.start != 0 {
		t, found, err = det.GetEdgeBetween(ctx, o.query, o.from, o.to, o.start, o.end)
	} else {
		t, found, err = det.GetLastEdge(ctx, o.query, o.from, o.to, o.maxAge)
	}
	if err != nil {
		logger.Error("edge query failed", "kind", edge.Kind(err), "err", err)
		fmt.Fprintln(stderr, "edgecheck:", err)
		return 1
	}

	word := "dropping"
	if edge.DirectionOf(o.from, o.to) == edge.Rising {
		word = "rising"
	}
	if found {
		fmt.Fprintf(stdout, "Last %s edge: %d\n", word, t)
	} else {
		fmt.Fprintf(stdout, "Query doesn't end with %s edge\n", word)
	}
	return 0
}
