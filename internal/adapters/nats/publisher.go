package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// Subjects published by this service.
const (
	SubjectPictures = "pictures.>"
	SubjectDatasets = "datasets.>"
	SubjectCadastre = "cadastre.>"

	subjectSplitCompleted = "datasets.split"
)

// Streams returns the JetStream streams backing the event subjects.
func Streams() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      "PICTURES",
			Subjects:  []string{SubjectPictures},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "DATASETS",
			Subjects:  []string{SubjectDatasets},
			Retention: nats.InterestPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "CADASTRE",
			Subjects:  []string{SubjectCadastre},
			Retention: nats.InterestPolicy,
			MaxAge:    30 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// PictureSubject is the subject of a pictures.saved event, e.g. "pictures.saved.polygon".
func PictureSubject(p *domain.Picture) string {
	return "pictures.saved." + token(p.Mode)
}

// ImportSubject is the subject of a cadastre import event, e.g. "cadastre.imported.06029".
func ImportSubject(r *domain.ImportReport) string {
	return "cadastre.imported." + token(r.Commune)
}

// token makes s usable as a single subject token.
func token(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "unknown"
	}
	return s
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	for _, cfg := range Streams() {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist: try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishPictureSaved(ctx context.Context, pic *domain.Picture) error {
	return p.publishJSON(ctx, PictureSubject(pic), pic)
}

func (p *Publisher) PublishSplitCompleted(ctx context.Context, r *domain.SplitReport) error {
	return p.publishJSON(ctx, subjectSplitCompleted, r)
}

func (p *Publisher) PublishParcelsImported(ctx context.Context, r *domain.ImportReport) error {
	return p.publishJSON(ctx, ImportSubject(r), r)
}

func (p *Publisher) publishJSON(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
