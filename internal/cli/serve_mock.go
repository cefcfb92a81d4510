package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/arloliu/reprise"
	natsadapter "github.com/arloliu/reprise/adapter/nats"
	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

const failPointMessage = "Failing command due to 'failCommand' failpoint"

type serveMockFlags struct {
	servers      []string
	failTimes    int
	failCode     int32
	failCommands []string
	publish      bool
}

func newServeMockCommand(g *globalFlags) *cobra.Command {
	f := &serveMockFlags{}

	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Serve mock database servers over NATS",
		Long: `serve-mock answers read commands for a set of fake servers until
interrupted. count returns n=2, ping returns ok and other commands return
an empty cursor.

A fail point makes the first --fail-times matching commands fail with
--fail-code, across all servers.`,
		Example: `  reprise serve-mock --servers db-1=RSPrimary,db-2=RSSecondary \
      --fail-times 1 --fail-code 10107 --fail-commands count`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeMock(cmd, g, f)
		},
	}

	cmd.Flags().StringSliceVar(&f.servers, "servers", nil, "servers as id=type, defaults to the config file list")
	cmd.Flags().IntVar(&f.failTimes, "fail-times", 0, "number of commands to fail")
	cmd.Flags().Int32Var(&f.failCode, "fail-code", 10107, "error code of failed commands")
	cmd.Flags().StringSliceVar(&f.failCommands, "fail-commands", nil, "command names to fail, all when empty")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "publish the server list to the configured NATS KV bucket")

	return cmd
}

func runServeMock(cmd *cobra.Command, g *globalFlags, f *serveMockFlags) error {
	logger := g.logger()

	fc, err := g.fileConfig()
	if err != nil {
		return err
	}

	entries, err := serverEntries(f.servers, fc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(g.resolveNATSURL(fc), nats.Name("reprise-mock"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	mock := &mockServer{failCode: f.failCode, failCommands: f.failCommands, logger: logger}
	mock.failRemaining.Store(int64(f.failTimes))

	prefix := subjectPrefix(fc)
	for _, e := range entries {
		r, err := natsadapter.Serve(nc, prefix, e.ID, mock.handler(e.ID), natsadapter.WithResponderLogger(logger))
		if err != nil {
			return err
		}
		defer func() { _ = r.Stop() }()

		logger.Info("serving mock server", "server", e.ID, "type", e.Type, "subject", natsadapter.Subject(prefix, e.ID))
	}

	if f.publish {
		if err := publishServers(ctx, nc, fc, entries); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	return nil
}

func serverEntries(flags []string, fc *reprise.FileConfig) ([]topology.ServerEntry, error) {
	if len(flags) == 0 {
		if len(fc.Servers) == 0 {
			return nil, fmt.Errorf("no servers: set --servers or a server list in the config file")
		}

		return fc.Servers, nil
	}

	entries := make([]topology.ServerEntry, 0, len(flags))
	for _, s := range flags {
		id, typ, ok := strings.Cut(s, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid server %q, want id=type", s)
		}
		st := types.ParseServerType(typ)
		if st == types.ServerUnknown {
			return nil, fmt.Errorf("invalid server type %q", typ)
		}
		entries = append(entries, topology.ServerEntry{ID: types.ServerID(id), Type: st})
	}

	return entries, nil
}

func publishServers(ctx context.Context, nc *nats.Conn, fc *reprise.FileConfig, entries []topology.ServerEntry) error {
	if fc.NATS.Bucket == "" {
		return fmt.Errorf("--publish needs nats.bucket in the config file")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: fc.NATS.Bucket})
	if err != nil {
		return err
	}

	key := fc.NATS.Key
	if key == "" {
		key = topology.DefaultWatcherConfig().Key
	}
	_, err = topology.PutServers(ctx, kv, key, topology.ServerList{Servers: entries, Source: "reprise serve-mock"})

	return err
}

// mockServer answers commands for every served server and holds the
// fail point they share.
type mockServer struct {
	failRemaining atomic.Int64
	failCode      int32
	failCommands  []string
	logger        *slog.Logger
}

func (m *mockServer) handler(server types.ServerID) natsadapter.Handler {
	return func(_ context.Context, db string, cmd wire.Document) (wire.Document, error) {
		name := cmd.Name()
		if m.shouldFail(name) {
			m.logger.Info("fail point triggered", "server", server, "command", name, "code", m.failCode)
			return nil, &types.ServerError{Code: m.failCode, Message: failPointMessage}
		}

		m.logger.Debug("command served", "server", server, "db", db, "command", name)

		switch name {
		case "count", "countDocuments":
			return wire.OK(wire.E("n", int64(2))), nil
		case "ping", "hello", "isMaster":
			return wire.OK(), nil
		default:
			coll, _ := cmd.String(name)
			return wire.OK(wire.E("cursor", wire.Document{
				wire.E("firstBatch", []wire.Document{}),
				wire.E("id", int64(0)),
				wire.E("ns", db+"."+coll),
			})), nil
		}
	}
}

func (m *mockServer) shouldFail(command string) bool {
	if len(m.failCommands) > 0 && !slices.ContainsFunc(m.failCommands, func(c string) bool {
		return strings.EqualFold(c, command)
	}) {
		return false
	}

	return m.failRemaining.Add(-1) >= 0
}
