// Command client is a small multi-relay demo: it connects to one or more
// relays with a fresh or supplied keypair, and either publishes one text
// note to all of them or subscribes and prints every event it receives.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"

	"nostrium.dev/client"
	"nostrium.dev/crypto/p256k/btcec"
	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filter"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/log"
)

type args struct {
	Relays  []string `arg:"required,separate" help:"relay URL, repeatable"`
	Sec     string   `arg:"--sec" help:"32-byte hex secret key; a fresh one is generated if omitted"`
	Publish string   `arg:"--publish" help:"publish this text as a kind-1 note and exit"`
	Kind    int64    `arg:"--kind" default:"1" help:"kind filter when subscribing"`
	Timeout int      `arg:"--timeout" default:"10" help:"per-relay fan-out timeout, seconds"`
}

func (args) Description() string {
	return "connects to one or more nostr relays and either publishes a note or subscribes to one."
}

func main() {
	var a args
	arg.MustParse(&a)

	signer := btcec.NewSigner()
	if a.Sec != "" {
		sec, err := hex.Dec(a.Sec)
		if chk.E(err) {
			os.Exit(1)
		}
		if err = signer.InitSec(sec); chk.E(err) {
			os.Exit(1)
		}
	} else if err := signer.Generate(); chk.E(err) {
		os.Exit(1)
	}
	pubkeyHex := hex.Enc(signer.Pub())
	color.Green("using pubkey %s", pubkeyHex)

	ctx, cancel := context.Cancel(context.Bg())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	manager := client.NewManager()
	defer manager.Shutdown()

	notify := client.ListenerFunc(func(n client.Notification) {
		switch n.Kind {
		case client.KindNostrEvent:
			fmt.Printf("[%s] %s: %s\n", n.RelayURL, hex.Enc(n.Event.Pubkey), string(n.Event.Content))
		case client.KindRelayError:
			color.Red("%s: %v", n.RelayURL, n.Reason)
		case client.KindConnected, client.KindRelayRemoved:
			log.I.F("%s: %s", n.RelayURL, n.Kind)
		}
	})

	session := client.NewMultiRelaySession(ctx, manager, pubkeyHex, signer, notify,
		time.Duration(a.Timeout)*time.Second)
	for _, url := range a.Relays {
		if err := session.AddRelay(url, client.ModeReadWrite); chk.E(err) {
			os.Exit(1)
		}
	}

	if a.Publish != "" {
		ev := event.New()
		ev.Kind = kind.Text
		ev.CreatedAt = timestamp.Now()
		ev.Content = []byte(a.Publish)
		if err := ev.Sign(signer); chk.E(err) {
			os.Exit(1)
		}
		results := session.Publish(ctx, ev)
		for url, r := range results {
			if r.Err != nil {
				color.Red("%s: %v", url, r.Err)
				continue
			}
			status := "rejected"
			if r.Result.Accepted {
				status = "accepted"
			}
			fmt.Printf("%s: %s (%s)\n", url, status, r.Result.Message)
		}
		return
	}

	f := filter.New()
	f.Kinds = append(f.Kinds, kind.T(a.Kind))
	subID := hex.Enc(signer.Pub())[:16]
	for _, url := range a.Relays {
		w, err := manager.GetOrStartSession(ctx, url, client.Options{Pubkey: pubkeyHex, Signer: signer, Notify: notify})
		if chk.E(err) {
			continue
		}
		if err = w.Subscribe(ctx, subID, []*filter.F{f}, notify); chk.E(err) {
			color.Red("%s: subscribe failed: %v", url, err)
		}
	}

	color.Yellow("subscribed, waiting for events (ctrl-c to stop)")
	<-ctx.Done()
}
