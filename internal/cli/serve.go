package cli

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/observability/prom"
	"github.com/matzehuels/stackforge/pkg/store"
	"github.com/matzehuels/stackforge/pkg/store/badgerstore"
	"github.com/matzehuels/stackforge/pkg/store/mongostore"
	"github.com/matzehuels/stackforge/pkg/store/remote"
)

const (
	defaultServeAddr = "localhost:9300"
	shutdownTimeout  = 10 * time.Second
)

// serveOpts holds the flags of the serve command.
type serveOpts struct {
	addr       string
	mongoURI   string
	database   string
	badgerPath string
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: defaultServeAddr}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a remote store server",
		Long: `Serve a store over HTTP so other machines can use it as a remote.

The store is a MongoDB collection (--mongo) or a Badger database (--badger,
the local store by default). Prometheus metrics are served on /metrics.`,
		Example: `  stackforge serve --addr :9300 --badger /srv/stackforge
  stackforge serve --mongo mongodb://localhost:27017`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", "", "MongoDB connection URI")
	cmd.Flags().StringVar(&opts.database, "mongo-db", mongostore.DefaultDatabase, "MongoDB database")
	cmd.Flags().StringVar(&opts.badgerPath, "badger", "", "Badger database directory (default: the local store)")
	cmd.MarkFlagsMutuallyExclusive("mongo", "badger")
	return cmd
}

// openServeStore opens the backend selected by opts and returns a
// description of it for display.
func (c *CLI) openServeStore(ctx context.Context, opts serveOpts) (*store.KVStore, string, error) {
	if opts.mongoURI != "" {
		st, err := mongostore.New(ctx, mongostore.Config{URI: opts.mongoURI, Database: opts.database})
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongodb")
		}
		return st, "mongodb " + opts.database, nil
	}
	path := opts.badgerPath
	if path == "" {
		path = c.cfg.WithDefaults().StorePath
	}
	st, err := badgerstore.New(badgerstore.Config{Path: path, Logger: c.Logger})
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInternal, err, "open store %s", path)
	}
	return st, "badger " + path, nil
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	st, desc, err := c.openServeStore(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := prom.New(prometheus.NewRegistry())
	metrics.Install()

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "listen on %s", opts.addr)
	}
	srv := &http.Server{
		Handler:           remote.NewServer(st, remote.ServerOptions{Logger: logger, Metrics: metrics.Handler()}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	printSuccess("Serving %s", desc)
	printKeyValue("Address", StyleLink.Render("http://"+ln.Addr().String()))
	printKeyValue("Metrics", StyleLink.Render("http://"+ln.Addr().String()+"/metrics"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "addr", opts.addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
