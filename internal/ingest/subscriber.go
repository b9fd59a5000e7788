package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"storyforge/internal/config"
	"storyforge/internal/decision"
	"storyforge/internal/logging"
	"storyforge/internal/queue"
	"storyforge/internal/story"
)

// TrendSignal is the wire format published by trend collectors.
type TrendSignal struct {
	Topic      string  `json:"topic"`
	Title      string  `json:"title,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	URL        string  `json:"url,omitempty"`
	Volume     int     `json:"volume"`
	GrowthRate float64 `json:"growth_rate,omitempty"`
	Source     string  `json:"source"`
	Category   string  `json:"category"`
	Breaking   bool    `json:"breaking,omitempty"`
}

const signalBuffer = 256

// Subscriber consumes trend signals from NATS and exposes them to the
// decision engine as a candidate source. Signals that arrive while the
// buffer is full are dropped with a warning; trend data is perishable.
type Subscriber struct {
	cfg     config.Ingest
	log     *slog.Logger
	conn    *nats.Conn
	sub     *nats.Subscription
	signals chan decision.Candidate
}

// NewSubscriber builds a Subscriber; Start establishes the connection.
func NewSubscriber(cfg config.Ingest, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Subscriber{
		cfg:     cfg,
		log:     logging.NewComponentLogger(logger, "ingest"),
		signals: make(chan decision.Candidate, signalBuffer),
	}
}

// Start connects to the broker and subscribes to the configured subject.
// The subscription drains when ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	conn, err := nats.Connect(s.cfg.URL,
		nats.Name("storyforge-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	sub, err := conn.Subscribe(s.cfg.Subject, s.handleMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}
	s.conn = conn
	s.sub = sub
	s.log.Info("subscribed to trend signals",
		slog.String("url", s.cfg.URL),
		slog.String("subject", s.cfg.Subject),
	)

	go func() {
		<-ctx.Done()
		if err := conn.Drain(); err != nil {
			s.log.Warn("broker drain failed", logging.Error(err))
		}
		s.log.Info("ingest stopped")
	}()
	return nil
}

func (s *Subscriber) handleMessage(msg *nats.Msg) {
	candidate, err := decodeSignal(msg.Data)
	if err != nil {
		s.log.Warn("malformed trend signal skipped",
			slog.String("subject", msg.Subject),
			logging.Error(err),
		)
		return
	}
	select {
	case s.signals <- candidate:
	default:
		s.log.Warn("signal buffer full, dropping trend",
			slog.String("topic", candidate.Content.Title),
		)
	}
}

// decodeSignal validates and converts one wire message into a candidate.
func decodeSignal(data []byte) (decision.Candidate, error) {
	var signal TrendSignal
	if err := json.Unmarshal(data, &signal); err != nil {
		return decision.Candidate{}, fmt.Errorf("decode signal: %w", err)
	}
	if strings.TrimSpace(signal.Topic) == "" {
		return decision.Candidate{}, fmt.Errorf("signal has no topic")
	}
	if signal.Volume < 0 {
		return decision.Candidate{}, fmt.Errorf("signal volume is negative")
	}

	title := signal.Title
	if title == "" {
		title = signal.Topic
	}
	kind := "trending"
	if signal.Breaking {
		kind = "breaking_news"
	}
	return decision.Candidate{
		Content: story.RawContent{
			Title:      title,
			Summary:    signal.Summary,
			Body:       signal.Summary,
			URL:        signal.URL,
			SourceName: signal.Source,
			Extra:      map[string]string{"topic": signal.Topic},
		},
		Source:     queue.SourceTrendingSignal,
		Kind:       kind,
		Category:   strings.ToLower(signal.Category),
		Volume:     signal.Volume,
		GrowthRate: signal.GrowthRate,
		Breaking:   signal.Breaking,
	}, nil
}

// Name implements decision.Source.
func (s *Subscriber) Name() string { return "nats_trends" }

// Collect implements decision.Source by draining the buffered signals.
func (s *Subscriber) Collect(ctx context.Context) ([]decision.Candidate, error) {
	var candidates []decision.Candidate
	for {
		select {
		case candidate := <-s.signals:
			candidates = append(candidates, candidate)
		case <-ctx.Done():
			return candidates, ctx.Err()
		default:
			return candidates, nil
		}
	}
}
