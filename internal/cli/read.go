package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/arloliu/reprise"
	natsadapter "github.com/arloliu/reprise/adapter/nats"
	"github.com/arloliu/reprise/internal/docyaml"
	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

type readFlags struct {
	uri            string
	db             string
	command        string
	readPreference string
	retryReads     bool
	timeout        time.Duration
}

func newReadCommand(g *globalFlags) *cobra.Command {
	f := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Send a read command and print the reply as JSON",
		Example: `  reprise read --uri 'reprise://db-1,db-2/app?readPreference=nearest' \
      --cmd '{"count": "orders", "query": {"status": "open"}}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRead(cmd, g, f)
		},
	}

	cmd.Flags().StringVar(&f.uri, "uri", "", "connection string, overrides the config file uri")
	cmd.Flags().StringVar(&f.db, "db", "", "database, defaults to the connection string database")
	cmd.Flags().StringVar(&f.command, "cmd", "", "command document as JSON or YAML; the first key names the command")
	cmd.Flags().StringVar(&f.readPreference, "read-preference", "", "read preference mode")
	cmd.Flags().BoolVar(&f.retryReads, "retry-reads", true, "retry a failed read once")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "operation timeout")
	_ = cmd.MarkFlagRequired("cmd")

	return cmd
}

func runRead(cmd *cobra.Command, g *globalFlags, f *readFlags) error {
	logger := g.logger()

	fc, err := g.fileConfig()
	if err != nil {
		return err
	}
	if f.uri != "" {
		fc.URI = f.uri
	}

	opts, err := fc.Options()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("retry-reads") {
		opts = append(opts, reprise.WithRetryReads(f.retryReads))
	}
	if f.readPreference != "" {
		mode, err := types.ParseReadPreferenceMode(f.readPreference)
		if err != nil {
			return err
		}
		opts = append(opts, reprise.WithReadPreference(reprise.ReadPreference{Mode: mode}))
	}
	opts = append(opts, reprise.WithLogger(logger))

	doc, err := docyaml.Parse([]byte(f.command))
	if err != nil {
		return fmt.Errorf("invalid --cmd: %w", err)
	}

	db := f.db
	var hosts []string
	if fc.URI != "" {
		cs, err := reprise.ParseURI(fc.URI)
		if err != nil {
			return err
		}
		hosts = cs.Hosts
		if db == "" {
			db = cs.Database
		}
	}
	if db == "" {
		return errors.New("no database: set --db or a database in the connection string")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	nc, err := nats.Connect(g.resolveNATSURL(fc), nats.Name("reprise-cli"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	view, closeView, err := openTopology(ctx, nc, fc, hosts, logger)
	if err != nil {
		return err
	}
	defer closeView()

	transport, err := natsadapter.NewTransport(nc,
		natsadapter.WithSubjectPrefix(subjectPrefix(fc)),
		natsadapter.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	client, err := reprise.NewClient(transport, view, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Command(db, doc).ExecContext(ctx)
	if err != nil {
		logReadError(logger, err)
		return err
	}

	return writeJSON(cmd.OutOrStdout(), reply.Document)
}

// openTopology returns the NATS KV view when a bucket is configured, the
// static server list otherwise, and finally the connection string hosts
// treated as routers.
func openTopology(
	ctx context.Context,
	nc *nats.Conn,
	fc *reprise.FileConfig,
	hosts []string,
	logger *slog.Logger,
) (reprise.TopologyView, func(), error) {
	if fc.NATS.Bucket != "" {
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, nil, err
		}
		kv, err := js.KeyValue(ctx, fc.NATS.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bucket %q: %w", fc.NATS.Bucket, err)
		}

		watcherOpts := []topology.WatcherOption{topology.WithLogger(logger)}
		if fc.NATS.Key != "" {
			watcherOpts = append(watcherOpts, topology.WithKey(fc.NATS.Key))
		}
		view, err := topology.NewNATS(kv, watcherOpts...)
		if err != nil {
			return nil, nil, err
		}
		view.Start(ctx)

		select {
		case <-view.Ready():
		case <-ctx.Done():
			_ = view.Close()
			return nil, nil, fmt.Errorf("waiting for topology: %w", ctx.Err())
		}

		return view, func() { _ = view.Close() }, nil
	}

	if len(fc.Servers) > 0 {
		view := fc.LocalTopology()
		return view, func() { _ = view.Close() }, nil
	}

	if len(hosts) == 0 {
		return nil, nil, errors.New("no servers: set a connection string, a server list or a NATS bucket")
	}

	view := topology.NewLocal()
	for _, h := range hosts {
		view.Upsert(types.ServerDescription{ID: types.ServerID(h), Type: types.ServerMongos})
	}

	return view, func() { _ = view.Close() }, nil
}

func subjectPrefix(fc *reprise.FileConfig) string {
	if fc.NATS.SubjectPrefix != "" {
		return fc.NATS.SubjectPrefix
	}

	return natsadapter.DefaultSubjectPrefix
}

func logReadError(logger *slog.Logger, err error) {
	var re *reprise.ReadError
	if !errors.As(err, &re) {
		logger.Error("read failed", "error", err)
		return
	}

	logger.Error("read failed",
		"command", re.Command,
		"server", re.Server,
		"attempt", re.Attempt,
		"category", re.Category,
		"reason", re.Reason,
		"error", re.Cause,
	)
}

func writeJSON(w io.Writer, doc wire.Document) error {
	data, err := json.MarshalIndent(doc.Map(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))

	return err
}
