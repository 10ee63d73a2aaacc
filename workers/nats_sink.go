package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"duel-engine/services"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SummaryMessage is the payload published for every summary update. Consumers key the
// rendered message on (kind, id) and edit it in place.
type SummaryMessage struct {
	Ref         services.SummaryRef    `json:"ref"`
	State       services.RenderedState `json:"state"`
	PublishedAt int64                  `json:"published_at"`
}

const flushTimeout = 5 * time.Second

// NATSSink publishes summaries to <prefix>.<kind>.<id>.
type NATSSink struct {
	Conn   *nats.Conn
	Prefix string
	Log    *zap.Logger
}

func ConnectNATS(url string, log *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func NewNATSSink(conn *nats.Conn, prefix string, log *zap.Logger) *NATSSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSSink{Conn: conn, Prefix: prefix, Log: log}
}

func (s *NATSSink) Subject(ref services.SummaryRef) string {
	return fmt.Sprintf("%s.%s.%s", s.Prefix, ref.Kind, ref.ID)
}

func (s *NATSSink) PostOrUpdateSummary(ctx context.Context, ref services.SummaryRef, state services.RenderedState) error {
	body, err := json.Marshal(SummaryMessage{Ref: ref, State: state, PublishedAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := s.Conn.Publish(s.Subject(ref), body); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	fctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := s.Conn.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	return nil
}

// LogSink writes summaries to the log; it is used when no NATS server is configured.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) PostOrUpdateSummary(_ context.Context, ref services.SummaryRef, state services.RenderedState) error {
	s.Log.Info("summary",
		zap.String("kind", ref.Kind),
		zap.String("id", ref.ID),
		zap.String("title", state.Title),
		zap.String("status", state.Status),
		zap.Bool("final", state.Final),
		zap.Strings("lines", state.Lines),
	)
	return nil
}
