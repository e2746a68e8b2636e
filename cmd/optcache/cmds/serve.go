package cmds

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"optcache/internal/api"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		port     int
		prefetch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the options HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			store, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			if prefetch {
				go func() {
					if err := store.PrefetchAll(ctx); err != nil {
						log.WithError(err).Warn("startup prefetch incomplete")
					}
				}()
			}

			stop, done := api.RunServerInterruptible(port, store)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case s := <-sig:
				log.WithField("signal", s.String()).Info("shutting down")
				close(stop)
				return <-done
			case err := <-done:
				return err
			}
		},
	}
	cmd.Flags().IntVar(&port, "port", defaultPort(), "listen port (env PORT)")
	cmd.Flags().BoolVar(&prefetch, "prefetch", true, "warm the global entities at startup")
	return cmd
}

func defaultPort() int {
	if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil && p > 0 {
		return p
	}
	return 8080
}
