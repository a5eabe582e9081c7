// Command relay runs a nostrium relay: configuration is read from the
// environment or an optional .env file (see app/config).
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"

	"nostrium.dev/app"
	"nostrium.dev/app/config"
	"nostrium.dev/app/relay"
	"nostrium.dev/crypto/p256k/btcec"
	"nostrium.dev/database"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/log"
	"nostrium.dev/version"
)

func main() {
	cfg, err := config.New()
	if chk.T(err) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		}
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	log.I.F("starting %s %s", cfg.AppName, version.V)
	if config.GetEnv() {
		config.PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	}
	if config.HelpRequested() {
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	lvl, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(lvl)
	if cfg.Pprof {
		defer profile.Start(profile.MemProfile).Stop()
		go func() {
			chk.E(http.ListenAndServe("127.0.0.1:6060", nil))
		}()
	}

	c, cancel := context.Cancel(context.Bg())
	store := database.New()
	r := &app.Relay{C: cfg, Store: store}
	go app.MonitorResources(c)

	srv, err := relay.NewServer(&relay.ServerParams{
		Ctx:       c,
		Cancel:    cancel,
		Rl:        r,
		Cfg:       cfg,
		NewSigner: btcec.NewSigner,
	})
	if chk.E(err) {
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Shutdown()
	}()

	if err = srv.Start(); chk.E(err) {
		log.F.F("server terminated: %v", err)
		os.Exit(1)
	}
}
