// Command exchange runs the matching engine (one book per symbol) behind the
// demonstration JSON-over-TCP gateway (internal/net). Grounded on the
// teacher's cmd/main.go / cmd/server/server.go wiring: a
// signal.NotifyContext shutdown, an engine, and a front-end server
// constructed around it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"matchcore/internal/domain"
	"matchcore/internal/engine"
	netgw "matchcore/internal/net"
)

func main() {
	address := flag.String("address", "0.0.0.0", "listen address")
	port := flag.Int("port", 9001, "listen port")
	scale := flag.Int64("price-scale", 100, "fixed-point price scale (ticks per unit)")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	domain.SetPriceScale(*scale)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	trades := make(chan domain.Trade, 1024)
	eng := engine.New(trades)
	eng.Start()
	defer eng.Stop()

	srv := netgw.New(*address, *port, eng)

	go func() {
		for trade := range trades {
			srv.BroadcastTrade(trade)
		}
	}()

	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("gateway exited")
			stop()
		}
	}()

	log.Info().Str("address", *address).Int("port", *port).Msg("exchange running")
	<-ctx.Done()
	srv.Shutdown()
	os.Exit(0)
}
