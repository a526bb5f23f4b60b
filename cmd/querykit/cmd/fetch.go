package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/querykit/config"
	"github.com/kbukum/querykit/problem"
	"github.com/kbukum/querykit/query"
)

var fetchFlags struct {
	method        string
	data          string
	headers       []string
	query         []string
	kind          string
	output        string
	retry         int
	retryDelay    string
	retryStrategy string
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <path>",
	Short: "Execute one request and print the result",
	Long: `Execute one request against the configured API.

Responses with a 5xx status are retried when --retry is set. The decoded
value is printed to stdout; a problem document is printed instead when the
request fails, and the command exits with status 1.

Examples:
  querykit fetch /users/1
  querykit fetch -X POST -d '{"name":"ada"}' /users
  querykit fetch -d @payload.json -H 'X-Tenant: acme' /imports
  querykit fetch --kind binary -o report.pdf /reports/42
  querykit fetch --retry 3 --retry-delay 500ms /flaky`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringVarP(&fetchFlags.method, "request", "X", "GET", "HTTP method")
	f.StringVarP(&fetchFlags.data, "data", "d", "", "request body; @file reads a file, @- reads stdin")
	f.StringArrayVarP(&fetchFlags.headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	f.StringArrayVarP(&fetchFlags.query, "query", "q", nil, "query parameter as name=value (repeatable)")
	f.StringVar(&fetchFlags.kind, "kind", "auto", "response kind: auto, json, text, binary")
	f.StringVarP(&fetchFlags.output, "output", "o", "", "write the result to a file instead of stdout")
	f.IntVar(&fetchFlags.retry, "retry", 0, "retries after a 5xx response (default from config)")
	f.StringVar(&fetchFlags.retryDelay, "retry-delay", "", "delay between retries, e.g. 500ms (default from config)")
	f.StringVar(&fetchFlags.retryStrategy, "retry-strategy", "", "fixed or exponential (default from config)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	desc, err := fetchDescriptor(cmd, cfg, args[0])
	if err != nil {
		return err
	}

	rt, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close(context.WithoutCancel(ctx)) }()

	out := cmd.OutOrStdout()
	if fetchFlags.output != "" {
		file, err := os.Create(fetchFlags.output)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	if desc.ResponseKind == query.Binary {
		return fetch(ctx, rt, desc, out, func(w io.Writer, v *query.BinaryData) error {
			_, err := w.Write(v.Data)
			return err
		})
	}
	return fetch(ctx, rt, desc, out, func(w io.Writer, v *[]byte) error {
		_, err := w.Write(*v)
		if err == nil && len(*v) > 0 && (*v)[len(*v)-1] != '\n' && fetchFlags.output == "" {
			_, err = io.WriteString(w, "\n")
		}
		return err
	})
}

func fetch[T any](ctx context.Context, rt *app, desc query.Descriptor, out io.Writer, write func(io.Writer, *T) error) error {
	e, err := query.New[T](rt.client.Adapter(), desc,
		query.WithName("fetch"),
		query.WithCredential(rt.credential),
		query.WithTracker(rt.tracker),
		query.WithRecorder(rt.recorder),
	)
	if err != nil {
		return err
	}
	defer e.Close()
	stopAbort := context.AfterFunc(ctx, e.Abort)
	defer stopAbort()

	v, err := e.Execute(ctx)
	if err != nil {
		if p, ok := problem.As(err); ok {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(p)
		}
		return err
	}
	return write(out, v)
}

// fetchDescriptor builds the request from flags on top of the configured
// client defaults.
func fetchDescriptor(cmd *cobra.Command, cfg *config.Config, path string) (query.Descriptor, error) {
	header, err := parseHeaders(fetchFlags.headers)
	if err != nil {
		return query.Descriptor{}, err
	}
	params, err := parseQuery(fetchFlags.query)
	if err != nil {
		return query.Descriptor{}, err
	}
	body, err := parseBody(fetchFlags.data, os.Stdin)
	if err != nil {
		return query.Descriptor{}, err
	}

	retry := cfg.Client.Retry
	flags := cmd.Flags()
	if flags.Changed("retry") {
		retry.Count = fetchFlags.retry
	}
	if flags.Changed("retry-delay") {
		d, err := parseDuration(fetchFlags.retryDelay)
		if err != nil {
			return query.Descriptor{}, fmt.Errorf("--retry-delay: %w", err)
		}
		retry.Delay = d
	}
	if flags.Changed("retry-strategy") {
		retry.Strategy = resilienceStrategy(fetchFlags.retryStrategy)
	}

	return query.Descriptor{
		Path:         path,
		Method:       strings.ToUpper(fetchFlags.method),
		Header:       header,
		Query:        params,
		Body:         body,
		ResponseKind: query.ParseResponseKind(fetchFlags.kind),
		Retry:        &retry,
	}, nil
}
