// Package receiver maintains the XMPP session to the weather wire,
// validates each product envelope, and emits WireMessages downstream.
package receiver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	mrand "math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/internal/types"
	"github.com/wxwire/wxwire/pkg/config"
)

// ErrAuthFailed is returned once consecutive authentication failures
// reach the configured threshold. The receiver is then terminal until
// externally restarted.
var ErrAuthFailed = errors.New("authentication failed")

// Hooks are optional lifecycle callbacks. Nil fields are skipped.
type Hooks struct {
	OnConnected    func(site string)
	OnDisconnected func(err error)
	OnReconnected  func(site string, attempt int)
	OnError        func(err error)
	OnMessage      func(msg types.WireMessage)
}

// Receiver owns the weather-wire connection lifecycle: connect, join
// the conference room, validate stanzas, reconnect with backoff.
type Receiver struct {
	cfg    config.ReceiverData
	stats  *stats.ReceiverStats
	clock  clockwork.Clock
	logger *zap.SugaredLogger
	hooks  Hooks

	out chan types.WireMessage

	// healthy flips to 1 on every valid stanza; the reconnect loop
	// consumes it to reset the attempt counter.
	healthy atomic.Bool

	// lastMsg holds the UnixNano of the last valid stanza (or session
	// start); the keepalive loop declares the stream stale when it ages
	// past the configured message timeout.
	lastMsg atomic.Int64

	seqMu   sync.Mutex
	lastSeq map[string]int

	sessionErr chan error
}

// New builds a receiver emitting into a bounded channel of the
// configured size.
func New(cfg config.ReceiverData, st *stats.ReceiverStats, clock clockwork.Clock, logger *zap.SugaredLogger, hooks Hooks) *Receiver {
	if st == nil {
		st = stats.NewReceiverStats()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Receiver{
		cfg:        cfg,
		stats:      st,
		clock:      clock,
		logger:     logger.Named("receiver"),
		hooks:      hooks,
		out:        make(chan types.WireMessage, cfg.MaxQueueSize),
		lastSeq:    make(map[string]int),
		sessionErr: make(chan error, 8),
	}
}

// Messages is the downstream channel of validated wire messages.
func (r *Receiver) Messages() <-chan types.WireMessage { return r.out }

// Run connects and receives until ctx is canceled or authentication
// fails terminally. Reconnects use exponential backoff with jitter;
// the attempt counter resets after a healthy stanza round-trip.
func (r *Receiver) Run(ctx context.Context) error {
	attempt := 0
	authFailures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		client, site, err := r.connect()
		if err != nil {
			if isAuthError(err) {
				authFailures++
				r.stats.AuthFailures.Inc()
				r.logger.Errorw("authentication rejected",
					"failures", authFailures,
					"max", r.cfg.MaxAuthFailures,
					"error", err)
				if authFailures >= r.cfg.MaxAuthFailures {
					return fmt.Errorf("%w after %d attempts: %v", ErrAuthFailed, authFailures, err)
				}
			}
			r.notifyError(err)
			if !r.sleepBackoff(ctx, attempt) {
				return nil
			}
			attempt++
			if r.attemptsExhausted(attempt) {
				return fmt.Errorf("reconnect attempts exhausted after %d: %w", attempt, err)
			}
			continue
		}
		authFailures = 0

		r.stats.Connected.Set(1)
		if attempt > 0 {
			r.stats.Reconnects.Inc()
			if r.hooks.OnReconnected != nil {
				r.hooks.OnReconnected(site, attempt)
			}
		} else if r.hooks.OnConnected != nil {
			r.hooks.OnConnected(site)
		}
		r.logger.Infow("receiving from weather wire", "site", site, "room", r.cfg.ConferenceRoom)

		sessionErr := r.session(ctx, client)
		r.stats.Connected.Set(0)
		_ = client.Disconnect()
		if r.hooks.OnDisconnected != nil {
			r.hooks.OnDisconnected(sessionErr)
		}

		if ctx.Err() != nil {
			return nil
		}
		if r.cfg.AutoReconnect != nil && !*r.cfg.AutoReconnect {
			return sessionErr
		}
		if r.healthy.Swap(false) {
			attempt = 0
		}
		r.logger.Warnw("connection lost, reconnecting", "error", sessionErr, "attempt", attempt+1)
		if !r.sleepBackoff(ctx, attempt) {
			return nil
		}
		attempt++
		if r.attemptsExhausted(attempt) {
			return fmt.Errorf("reconnect attempts exhausted after %d: %w", attempt, sessionErr)
		}
	}
}

// attemptsExhausted reports whether the configured reconnect cap has
// been reached. Zero means unlimited.
func (r *Receiver) attemptsExhausted(attempt int) bool {
	return r.cfg.MaxReconnectAttempts > 0 && attempt >= r.cfg.MaxReconnectAttempts
}

// connect tries the primary site, then the backup, returning the first
// client whose stream comes up.
func (r *Receiver) connect() (*xmpp.Client, string, error) {
	sites := []string{r.cfg.Server}
	if r.cfg.BackupServer != "" {
		sites = append(sites, r.cfg.BackupServer)
	}

	var lastErr error
	for _, site := range sites {
		client, err := r.newClient(site)
		if err != nil {
			lastErr = err
			continue
		}
		if err := client.Connect(); err != nil {
			_ = client.Disconnect()
			lastErr = fmt.Errorf("connect %s: %w", site, err)
			if isAuthError(err) {
				return nil, site, lastErr
			}
			r.logger.Warnw("site unreachable", "site", site, "error", err)
			continue
		}
		return client, site, nil
	}
	return nil, "", lastErr
}

func (r *Receiver) newClient(site string) (*xmpp.Client, error) {
	domain := jidDomain(r.cfg.ConferenceRoom)

	cfg := xmpp.Config{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: fmt.Sprintf("%s:%d", site, r.cfg.Port),
			Domain:  domain,
		},
		Jid:            fmt.Sprintf("%s@%s/%s", r.cfg.Username, domain, instanceID()),
		Credential:     xmpp.Password(r.cfg.Password),
		ConnectTimeout: 10,
	}

	router := xmpp.NewRouter()
	router.HandleFunc("message", r.handleStanza)
	router.HandleFunc("presence", func(xmpp.Sender, stanza.Packet) {})

	return xmpp.NewClient(&cfg, router, func(err error) {
		select {
		case r.sessionErr <- err:
		default:
		}
	})
}

// session joins the room and runs keepalives until the stream breaks
// or ctx ends.
func (r *Receiver) session(ctx context.Context, client *xmpp.Client) error {
	if err := r.joinRoom(client); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	interval := time.Duration(r.cfg.KeepaliveInterval * float64(time.Second))
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	r.lastMsg.Store(r.clock.Now().UnixNano())

	missedPings := 0
	for {
		select {
		case <-ctx.Done():
			r.leaveRoom(client)
			return nil
		case err := <-r.sessionErr:
			return err
		case <-ticker.Chan():
			start := r.clock.Now()
			if r.messageStale(start) {
				return fmt.Errorf("no message in %.0fs, connection stale", r.cfg.MessageTimeout)
			}
			if err := client.SendRaw(" "); err != nil {
				missedPings++
				r.logger.Warnw("keepalive failed", "missed", missedPings, "error", err)
				if missedPings >= 2 {
					return fmt.Errorf("connection dead: %d keepalives failed", missedPings)
				}
				continue
			}
			missedPings = 0
			r.stats.PingLatency.ObserveDuration(r.clock.Since(start))
		}
	}
}

// joinRoom requests the conference room with history suppressed; the
// wire replays nothing on join, so a reconnect never floods the
// pipeline with stale products.
func (r *Receiver) joinRoom(client *xmpp.Client) error {
	return client.Send(stanza.Presence{
		Attrs: stanza.Attrs{To: r.roomJID()},
		Extensions: []stanza.PresExtension{
			stanza.MucPresence{
				History: stanza.History{MaxStanzas: stanza.NewNullableInt(0)},
			},
		},
	})
}

func (r *Receiver) leaveRoom(client *xmpp.Client) {
	err := client.Send(stanza.Presence{
		Attrs: stanza.Attrs{
			To:   r.roomJID(),
			Type: stanza.PresenceTypeUnavailable,
		},
	})
	if err != nil {
		r.logger.Debugw("leave room failed", "error", err)
	}
}

func (r *Receiver) roomJID() string {
	return r.cfg.ConferenceRoom + "/" + r.cfg.Username
}

// handleStanza validates one group-chat stanza and emits a WireMessage.
func (r *Receiver) handleStanza(_ xmpp.Sender, p stanza.Packet) {
	start := r.clock.Now()

	msg, ok := p.(stanza.Message)
	if !ok {
		return
	}

	var env ProductEnvelope
	if ok := msg.Get(&env); !ok {
		r.stats.MalformedEnvelope.Inc()
		r.logger.Debugw("stanza without product envelope", "from", msg.From)
		return
	}

	env.AwipsID = strings.TrimSpace(env.AwipsID)
	if len(env.AwipsID) < 4 || len(env.AwipsID) > 6 || len(env.Cccc) != 4 {
		r.stats.MalformedHeader.Inc()
		r.logger.Warnw("malformed envelope header",
			"cccc", env.Cccc, "awipsid", env.AwipsID, "ttaaii", env.Ttaaii)
		return
	}

	issued, err := env.IssuedAt()
	if err != nil {
		r.stats.MalformedHeader.Inc()
		r.logger.Warnw("unparseable issue attribute", "issue", env.Issue, "error", err)
		return
	}

	r.trackSequence(&env)

	now := r.clock.Now()
	wire := types.WireMessage{
		ID:         env.ID,
		Subject:    msg.Subject,
		BodyText:   env.Text,
		IssuedAt:   issued.UTC(),
		AwipsID:    env.AwipsID,
		Cccc:       env.Cccc,
		Ttaaii:     env.Ttaaii,
		ReceivedAt: now.UTC(),
		RoomJID:    msg.From,
	}

	r.stats.MarkMessage(now)
	r.healthy.Store(true)
	r.lastMsg.Store(now.UnixNano())

	r.out <- wire
	r.stats.QueueDepth.Set(int64(len(r.out)))
	r.stats.StanzaLatency.ObserveDuration(r.clock.Since(start))

	if r.hooks.OnMessage != nil {
		r.hooks.OnMessage(wire)
	}
}

// trackSequence watches the envelope's pid.seq marker for gaps.
func (r *Receiver) trackSequence(env *ProductEnvelope) {
	pid, seq, err := env.SequenceID()
	if err != nil {
		r.logger.Debugw("unparseable sequence id", "id", env.ID)
		return
	}

	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	if last, seen := r.lastSeq[pid]; seen && seq != last+1 && seq > last {
		missed := seq - last - 1
		r.stats.SequenceGaps.Inc()
		r.stats.MissedMessages.Add(int64(missed))
		r.logger.Warnw("sequence gap detected",
			"process_id", pid, "expected", last+1, "received", seq, "missed", missed)
	}
	r.lastSeq[pid] = seq
}

// messageStale reports whether the wire has been silent longer than the
// configured message timeout. Zero disables the check.
func (r *Receiver) messageStale(now time.Time) bool {
	timeout := time.Duration(r.cfg.MessageTimeout * float64(time.Second))
	if timeout <= 0 {
		return false
	}
	last := r.lastMsg.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) > timeout
}

// backoffDelay computes the reconnect wait before an attempt:
// min(max, base*mult^attempt) scaled by a uniform 0.8-1.2 jitter.
func (r *Receiver) backoffDelay(attempt int) time.Duration {
	base := r.cfg.ReconnectDelay
	max := r.cfg.MaxReconnectDelay
	mult := r.cfg.ReconnectBackoffFactor

	delay := math.Min(max, base*math.Pow(mult, float64(attempt)))
	delay *= 0.8 + 0.4*mrand.Float64()
	return time.Duration(delay * float64(time.Second))
}

// sleepBackoff waits out the backoff for an attempt. Returns false when
// ctx ended during the wait.
func (r *Receiver) sleepBackoff(ctx context.Context, attempt int) bool {
	timer := r.clock.NewTimer(r.backoffDelay(attempt))
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Receiver) notifyError(err error) {
	if r.hooks.OnError != nil {
		r.hooks.OnError(err)
	}
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "auth") ||
		strings.Contains(msg, "sasl") ||
		strings.Contains(msg, "not-authorized")
}

// instanceID distinguishes concurrent sessions under one account; the
// wire kicks duplicate full JIDs.
func instanceID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
	}
	return hex.EncodeToString(b)
}

func jidDomain(conferenceRoom string) string {
	// room is nwws@conference.<domain>; account JIDs live on <domain>
	if i := strings.Index(conferenceRoom, "@"); i >= 0 {
		return strings.TrimPrefix(conferenceRoom[i+1:], "conference.")
	}
	return conferenceRoom
}
