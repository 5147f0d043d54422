package main

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/dbkit/internal/server"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the validation HTTP API",
	Long: `Serve validation over HTTP. With --watch the scheduled drift check
also runs in the background and its status is exposed at /v1/watch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		opts := []server.Option{
			server.WithPinger(a.DB),
			server.WithMeta(a.Meta()),
			server.WithLogger(a.Log),
		}
		if a.Archiver != nil {
			opts = append(opts, server.WithReports(a.Archiver))
		}

		if serveWatch {
			w := newWatcher(a)
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()
			opts = append(opts, server.WithWatch(w))
		}

		srv := server.New(a.Validator, a.Tables, opts...)
		return srv.ListenAndServe(ctx, addr, cfg.Server.ShutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "also run the scheduled drift check")
	rootCmd.AddCommand(serveCmd)
}
