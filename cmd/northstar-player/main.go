// Command northstar-player is a headless device: it joins or creates a team
// through the relay and logs the team record and notices as they change.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"northstar/internal/client"
	"northstar/internal/config"
	"northstar/internal/gamedata"
	"northstar/internal/teams"
)

func main() {
	var relay, team, role string
	var create bool
	flag.StringVar(&relay, "relay", "ws://localhost:8080/ws", "relay websocket url (empty runs on the local store)")
	flag.StringVar(&team, "team", "", "team name")
	flag.BoolVar(&create, "create", false, "create the team instead of joining it")
	flag.StringVar(&role, "role", "", "functional role to take (A, B, C or D)")
	flag.Parse()

	if team == "" {
		fmt.Fprintln(os.Stderr, "Error: -team is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Open(ctx, cfg, relay)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer c.Close()

	if err := c.Enter(ctx, team, create); err != nil {
		log.Fatalf("entering %q: %v", team, err)
	}
	if role != "" {
		if err := c.State.AssignRole(ctx, gamedata.Role(role)); err != nil {
			log.Fatalf("taking role %s: %v", role, err)
		}
	}
	log.Printf("[Player] %s in team %s (local store: %v)\n", c.State.Session().PlayerID, c.State.TeamID(), c.State.UsingLocal())

	stopWatch := c.State.Watch(func(rec teams.Record) {
		log.Printf("[Player] stage %d/%d, %d players, score %d\n",
			rec.Meta.CurrentStage, rec.Meta.UnlockedStage, len(rec.Players), rec.Meta.Score)
	})
	defer stopWatch()
	stopConn := c.State.WatchConnection(func(up bool) {
		log.Printf("[Player] connected: %v\n", up)
	})
	defer stopConn()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.Bus.Notices:
			log.Printf("[Player] %s: %s\n", n.Kind, n.Message)
			if n.Retryable() {
				if err := n.Retry(ctx); err != nil {
					log.Printf("[Player] retry failed: %v\n", err)
				}
			}
		}
	}
}
