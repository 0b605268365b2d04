package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blochsim/blochsim/server"
)

var (
	serveAddr      string // Listen address for the HTTP server
	serveWorkers   int    // Default worker goroutines per request
	serveCacheSize int    // Compiled-program cache capacity
)

// serveCmd runs the HTTP front end until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve simulations over HTTP",
	Long:  "Start the HTTP server: POST /api/simulate runs a simulation, /api/jobs/{id}/progress streams progress over a websocket, /metrics exposes prometheus counters.",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		srv, err := server.New(server.Config{
			Addr:      serveAddr,
			Workers:   serveWorkers,
			CacheSize: serveCacheSize,
		})
		if err != nil {
			logrus.Fatalf("Failed to build server: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			logrus.Fatalf("Server error: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "Listen address")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Default worker goroutines per request (0 = GOMAXPROCS)")
	serveCmd.Flags().IntVar(&serveCacheSize, "cache-size", 64, "Compiled-program cache capacity")

	rootCmd.AddCommand(serveCmd)
}
