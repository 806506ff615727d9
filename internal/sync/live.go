package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/calebmorten/pwc-deal-tracker/internal/metrics"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

const defaultPingInterval = 30 * time.Second

// Envelope is one message on a live session. Every envelope carries a
// unique id so replayed deliveries can be recognized and acknowledged
// without being re-applied.
type Envelope struct {
	ID      string             `json:"id"`
	Kind    string             `json:"kind"`
	SentAt  time.Time          `json:"sent_at"`
	Records []domain.RawRecord `json:"records,omitempty"`
	AckID   string             `json:"ack_id,omitempty"`
}

// Envelope kinds.
const (
	KindRecords = "records"
	KindAck     = "ack"
)

// RecordHandler consumes records delivered over a live session. Handlers
// must be idempotent at the dataset level; the session already suppresses
// envelope-level replays.
type RecordHandler func(ctx context.Context, records []domain.RawRecord) error

// LiveSession is a websocket channel to a relay shared by two devices. The
// session id is exchanged out of band (QR code, link). Both ends push
// record envelopes; applying is replay-safe because imports funnel through
// the deduplicator.
type LiveSession struct {
	conn         *websocket.Conn
	handler      RecordHandler
	pingInterval time.Duration
	logger       *slog.Logger

	writeMu stdsync.Mutex
	seenMu  stdsync.Mutex
	seen    map[string]bool
}

// DialSession connects to the relay and joins the named session.
func DialSession(
	ctx context.Context,
	relayURL, sessionID string,
	handler RecordHandler,
	pingInterval time.Duration,
	logger *slog.Logger,
) (*LiveSession, error) {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, relayURL+"?session="+sessionID, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &TransportError{Transport: "live", Op: "dial", Err: err}
	}

	return &LiveSession{
		conn:         conn,
		handler:      handler,
		pingInterval: pingInterval,
		logger:       logger.With("component", "live", "session", sessionID),
		seen:         make(map[string]bool),
	}, nil
}

// NewSessionID generates a session id for out-of-band exchange.
func NewSessionID() string {
	return uuid.NewString()
}

// Send pushes records to the peer as a single envelope.
func (s *LiveSession) Send(records []domain.RawRecord) error {
	env := Envelope{
		ID:      uuid.NewString(),
		Kind:    KindRecords,
		SentAt:  time.Now().UTC(),
		Records: records,
	}
	if err := s.writeEnvelope(env); err != nil {
		metrics.TransportFailuresTotal.WithLabelValues("live").Inc()
		return &TransportError{Transport: "live", Op: "send", Err: err}
	}
	metrics.LiveMessagesTotal.WithLabelValues("out").Inc()
	return nil
}

// Run reads envelopes until the context is cancelled or the connection
// drops. Record envelopes are handed to the handler exactly once per id;
// replays are re-acknowledged and skipped.
func (s *LiveSession) Run(ctx context.Context) error {
	go s.pingLoop(ctx)
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	for {
		var env Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &TransportError{Transport: "live", Op: "read", Err: err}
		}

		metrics.LiveMessagesTotal.WithLabelValues("in").Inc()

		switch env.Kind {
		case KindAck:
			continue
		case KindRecords:
			if err := s.applyOnce(ctx, env); err != nil {
				return err
			}
		default:
			s.logger.Warn("ignoring unknown envelope kind", "kind", env.Kind, "envelope_id", env.ID)
		}
	}
}

// Close shuts the session down.
func (s *LiveSession) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}

func (s *LiveSession) applyOnce(ctx context.Context, env Envelope) error {
	s.seenMu.Lock()
	replay := s.seen[env.ID]
	s.seen[env.ID] = true
	s.seenMu.Unlock()

	if !replay && s.handler != nil {
		if err := s.handler(ctx, env.Records); err != nil {
			return fmt.Errorf("applying live records: %w", err)
		}
	}
	if replay {
		s.logger.Debug("skipping replayed envelope", "envelope_id", env.ID)
	}

	ack := Envelope{
		ID:     uuid.NewString(),
		Kind:   KindAck,
		SentAt: time.Now().UTC(),
		AckID:  env.ID,
	}
	if err := s.writeEnvelope(ack); err != nil {
		s.logger.Warn("ack write failed", "envelope_id", env.ID, "error", err)
	}
	return nil
}

func (s *LiveSession) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *LiveSession) writeEnvelope(env Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}
