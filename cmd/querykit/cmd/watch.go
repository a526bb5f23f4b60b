package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/querykit/config"
	"github.com/kbukum/querykit/state"
	"github.com/kbukum/querykit/stream"
)

var watchFlags struct {
	authParam      string
	reconnect      int
	reconnectDelay string
	ignore         []string
	query          []string
	honorRetry     bool
}

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Stream events and print each published state",
	Long: `Open a Server-Sent Events stream and print every published state as
one JSON line until interrupted.

The stream reconnects after a failure up to --reconnect times, waiting
--reconnect-delay between attempts. When the budget is spent the terminal
problem is printed and the command exits with status 1.

Examples:
  querykit watch /events
  querykit watch --auth-param token --reconnect 5 /notifications
  querykit watch --ignore ping,heartbeat /feed`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchFlags.authParam, "auth-param", "", "query parameter carrying the credential")
	f.IntVar(&watchFlags.reconnect, "reconnect", 0, "reconnect attempts after a failure (default from config)")
	f.StringVar(&watchFlags.reconnectDelay, "reconnect-delay", "", "delay between reconnects (default from config)")
	f.StringSliceVar(&watchFlags.ignore, "ignore", nil, "event types to skip (default: ping)")
	f.StringArrayVarP(&watchFlags.query, "query", "q", nil, "query parameter as name=value (repeatable)")
	f.BoolVar(&watchFlags.honorRetry, "honor-retry", false, "use the server's retry: hint as the reconnect delay")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := watchConfig(cmd, cfg, args[0])
	if err != nil {
		return err
	}

	rt, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close(context.WithoutCancel(ctx)) }()

	e, err := stream.New[json.RawMessage](stream.NewSSETransport(rt.client.Adapter()), sc,
		stream.WithName("watch"),
		stream.WithCredential(rt.credential),
		stream.WithTracker(rt.tracker),
		stream.WithRecorder(rt.recorder),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	unsubscribe := e.Subscribe(func(s state.State[json.RawMessage]) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(s)
	})
	defer unsubscribe()

	if err := rt.start(ctx, stream.NewComponent(e)); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		e.Abort()
		return nil
	case <-e.Done():
	}
	if p := e.State().Problem; p != nil {
		return p
	}
	return nil
}

// watchConfig builds the session config from flags on top of the configured
// stream defaults.
func watchConfig(cmd *cobra.Command, cfg *config.Config, path string) (stream.Config, error) {
	sc := cfg.Stream
	sc.Path = path
	if sc.BaseURL == "" {
		sc.BaseURL = cfg.Client.BaseURL
	}

	params, err := parseQuery(watchFlags.query)
	if err != nil {
		return stream.Config{}, err
	}
	sc.Query = params

	flags := cmd.Flags()
	if flags.Changed("auth-param") {
		sc.AuthQueryParam = watchFlags.authParam
	}
	if flags.Changed("reconnect") {
		sc.Reconnect.Count = watchFlags.reconnect
	}
	if flags.Changed("reconnect-delay") {
		d, err := parseDuration(watchFlags.reconnectDelay)
		if err != nil {
			return stream.Config{}, fmt.Errorf("--reconnect-delay: %w", err)
		}
		sc.Reconnect.Delay = d
	}
	if flags.Changed("ignore") {
		sc.IgnoreEvents = make([]string, 0, len(watchFlags.ignore))
		for _, name := range watchFlags.ignore {
			if name = strings.TrimSpace(name); name != "" {
				sc.IgnoreEvents = append(sc.IgnoreEvents, name)
			}
		}
	}
	if flags.Changed("honor-retry") {
		sc.HonorRetryHint = watchFlags.honorRetry
	}
	return sc, nil
}
