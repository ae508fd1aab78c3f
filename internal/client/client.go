// Package client assembles the player-side stack for one device: the
// session, the local fallback store, the relay connection and the stage
// controllers over a shared game state store.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"

	"northstar/internal/assessment"
	"northstar/internal/checklist"
	"northstar/internal/config"
	"northstar/internal/consensus"
	"northstar/internal/events"
	"northstar/internal/gamestate"
	"northstar/internal/kvstore"
	"northstar/internal/kvstore/localkv"
	"northstar/internal/kvstore/wskv"
	"northstar/internal/levels"
	"northstar/internal/sampling"
	"northstar/internal/session"
)

type Client struct {
	State      *gamestate.Store
	Consensus  *consensus.Engine
	Levels     *levels.Controller
	Checklist  *checklist.Checklist
	Sampling   *sampling.Planner
	Assessment *assessment.Assessment
	Bus        *events.Bus

	local *localkv.Store
	relay *wskv.Client
}

// Open builds a Client. An empty relayURL, or a relay that cannot be
// reached, leaves the game state store on the local store.
func Open(ctx context.Context, cfg config.Config, relayURL string) (*Client, error) {
	local, err := localkv.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	if cfg.TestMode {
		if err := session.SetTestMode(ctx, local, true); err != nil {
			local.Close()
			return nil, err
		}
	}
	sess, err := session.Load(ctx, local)
	if err != nil {
		local.Close()
		return nil, err
	}

	c := &Client{Bus: events.NewBus(), local: local}

	var remote kvstore.Store
	if relayURL != "" {
		relay, err := wskv.Dial(ctx, relayURL)
		if err != nil {
			log.Printf("[Client] %v\n", err)
		} else {
			c.relay = relay
			remote = relay
		}
	}

	c.State = gamestate.New(sess, remote, local, gamestate.Options{
		Config:     cfg.Game(),
		Retry:      cfg.Retry(),
		EchoWindow: cfg.EchoWindow,
		Bus:        c.Bus,
	})
	c.Consensus = consensus.New(c.State, cfg.DebounceWindow)
	c.Levels = levels.New(c.State)
	c.Checklist = checklist.New(c.State)
	c.Sampling = sampling.New(c.State)
	c.Assessment = assessment.New(c.State)
	return c, nil
}

// Enter creates the named team, or joins it when create is false, and
// scopes subscriptions to the team's current stage.
func (c *Client) Enter(ctx context.Context, team string, create bool) error {
	var err error
	if create {
		_, err = c.State.CreateTeam(ctx, team)
	} else {
		_, err = c.State.JoinTeam(ctx, team)
	}
	if err != nil {
		return err
	}
	stage := c.State.Record().Meta.CurrentStage
	if stage < 1 {
		stage = 1
	}
	return c.Levels.View(ctx, stage)
}

func (c *Client) Close() error {
	c.Consensus.Close()
	c.State.Close()
	var errs []error
	if c.relay != nil {
		errs = append(errs, c.relay.Close())
	}
	errs = append(errs, c.local.Close())
	return errors.Join(errs...)
}
