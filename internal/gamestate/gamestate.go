// Package gamestate keeps a local mirror of one team record converged with
// the backend while letting every mutation apply locally first.
//
// A Store talks to an optional remote kvstore.Store and a local point
// store. When the remote is missing, or fails while creating or joining a
// team, the Store switches to the local one for the rest of the session.
package gamestate

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"northstar/internal/events"
	"northstar/internal/gamedata"
	"northstar/internal/kvstore"
	"northstar/internal/metrics"
	"northstar/internal/retry"
	"northstar/internal/session"
	"northstar/internal/teams"
)

var (
	ErrAlreadyExists = errors.New("a team with that name already exists")
	ErrNotFound      = errors.New("team not found")
	ErrFull          = errors.New("team is full")
	ErrWriteFailed   = errors.New("write failed")
	ErrNoTeam        = errors.New("not in a team")
	ErrInvalidRole   = errors.New("invalid functional role")
	ErrOutsideTeam   = errors.New("path is outside the team record")
)

const DefaultEchoWindow = 500 * time.Millisecond

type Options struct {
	Config gamedata.Config
	Retry  retry.Policy
	// EchoWindow is how long after a local write inbound updates are
	// discarded as echoes. Zero disables suppression.
	EchoWindow time.Duration
	Bus        *events.Bus
	Clock      func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Config:     gamedata.DefaultConfig(),
		Retry:      retry.DefaultPolicy(),
		EchoWindow: DefaultEchoWindow,
		Clock:      time.Now,
	}
}

type Store struct {
	session session.Session
	remote  kvstore.Store
	local   kvstore.PointStore
	opts    Options
	mirror  *kvstore.Tree

	// applyMu orders inbound mirror writes against the trailing apply of
	// suppressed deliveries.
	applyMu sync.Mutex

	mu             sync.Mutex
	usingLocal     bool
	teamID         string
	viewing        int
	scopeGen       uint64
	unsubs         []func()
	lastLocalWrite time.Time
	// suppressed holds the newest delivery held back as a possible echo, per
	// subscribed path. It is applied once the echo window goes quiet.
	suppressed map[string]any
	echoTimer  *time.Timer
}

// New builds a Store for the device session. remote may be nil, in which
// case everything runs against local.
func New(sess session.Session, remote kvstore.Store, local kvstore.PointStore, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Config.TeamCapacity == 0 {
		opts.Config = gamedata.DefaultConfig()
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	s := &Store{
		session: sess,
		remote:  remote,
		local:   local,
		opts:    opts,
		mirror:  kvstore.NewTree(),
	}
	if remote == nil {
		log.Printf("[GameState] %v, using local store\n", kvstore.ErrNotConfigured)
		s.usingLocal = true
	}
	return s
}

func (s *Store) Session() session.Session { return s.session }

func (s *Store) Config() gamedata.Config { return s.opts.Config }

func (s *Store) Now() time.Time { return s.opts.Clock() }

func (s *Store) Bus() *events.Bus { return s.opts.Bus }

// TeamID returns the current team, empty before CreateTeam or JoinTeam.
func (s *Store) TeamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamID
}

// Viewing returns the stage the scoped subscriptions cover.
func (s *Store) Viewing() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewing
}

// UsingLocal reports whether the Store has fallen back to the local store.
func (s *Store) UsingLocal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usingLocal
}

// Record decodes the current mirror of the team record.
func (s *Store) Record() teams.Record {
	id := s.TeamID()
	if id == "" {
		return teams.Record{}
	}
	v, _ := s.mirror.Get(context.Background(), teams.Path(id))
	rec, err := teams.Decode(v)
	if err != nil {
		log.Printf("[GameState] Decoding team %s: %v\n", id, err)
	}
	return rec
}

// Watch calls fn with the decoded mirror after every change to it.
func (s *Store) Watch(fn func(teams.Record)) func() {
	unsub, err := s.mirror.Subscribe(teams.Root, func(any) { fn(s.Record()) })
	if err != nil {
		return func() {}
	}
	return unsub
}

// WatchConnection reports remote connectivity. A Store on its local store
// reports disconnected.
func (s *Store) WatchConnection(fn kvstore.ConnectionFunc) func() {
	if s.remote == nil || s.UsingLocal() {
		fn(false)
		return func() {}
	}
	return s.remote.SubscribeConnectionState(fn)
}

// backend returns the store writes currently go to and whether it is the
// remote one.
func (s *Store) backend() (kvstore.PointStore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usingLocal {
		return s.local, false
	}
	return s.remote, true
}

func (s *Store) fallBack(op string, err error) {
	s.mu.Lock()
	already := s.usingLocal
	s.usingLocal = true
	s.mu.Unlock()
	if already {
		return
	}
	metrics.LocalFallbacks.Inc()
	log.Printf("[GameState] %s failed on remote store (%v), falling back to local store\n", op, err)
}

// Close tears down every live subscription.
func (s *Store) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.scopeGen++
	s.suppressed = nil
	if s.echoTimer != nil {
		s.echoTimer.Stop()
	}
	s.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
	s.mirror.Close()
}

func isValidation(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrFull) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrOutsideTeam) ||
		errors.Is(err, teams.ErrInvalidName) ||
		errors.Is(err, kvstore.ErrInvalidPath) ||
		errors.Is(err, kvstore.ErrOverlappingPaths)
}
