package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/pipeline"
)

// RunEvent is the NATS message published after every finished run.
type RunEvent struct {
	RunID         string    `json:"run_id"`
	Repo          string    `json:"repo"`
	Commit        string    `json:"commit,omitempty"`
	Outcome       string    `json:"outcome"`
	FailedStage   string    `json:"failed_stage,omitempty"`
	PublishCommit string    `json:"publish_commit,omitempty"`
	Files         int       `json:"files,omitempty"`
	Deleted       int       `json:"deleted,omitempty"`
	UpToDate      bool      `json:"up_to_date,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventPublisher publishes run events to a NATS subject so other systems
// (notifiers, dashboards) can react to documentation publishes.
type EventPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewEventPublisher connects to NATS per the given configuration.
func NewEventPublisher(cfg config.NATSConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("event publishing is disabled")
	}
	conn, err := nats.Connect(cfg.URL, nats.Name("docpages"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS", logfields.URL(cfg.URL), slog.String("subject", cfg.Subject))
	return &EventPublisher{conn: conn, subject: cfg.Subject}, nil
}

// PublishRun emits an event for a finished run.
func (p *EventPublisher) PublishRun(res *pipeline.Result) error {
	ev := RunEvent{
		RunID:       res.RunID,
		Repo:        res.Repo,
		Commit:      res.Commit,
		Outcome:     string(res.Outcome),
		FailedStage: string(res.FailedStage()),
		DurationMS:  res.Duration.Milliseconds(),
		Timestamp:   time.Now(),
	}
	if res.Publish != nil {
		ev.PublishCommit = res.Publish.Commit
		ev.Files = res.Publish.Files
		ev.Deleted = res.Publish.Deleted
		ev.UpToDate = res.Publish.UpToDate
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	slog.Debug("Published run event", logfields.RunID(res.RunID), slog.String("subject", p.subject))
	return nil
}

// Close drains and closes the NATS connection.
func (p *EventPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}
