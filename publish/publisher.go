// Package publish sends fire-and-forget notifications about task state.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// SubjectPrefix is prepended to every task subject
const SubjectPrefix = "planner.tasks"

// TaskSubject returns the subject snapshots of one task are published on
func TaskSubject(taskID string) string {
	return SubjectPrefix + "." + taskID
}

// Publisher delivers a message on a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Nop discards every message
type Nop struct{}

func (Nop) Publish(ctx context.Context, subject string, data []byte) error {
	return nil
}

// NATS publishes with core NATS; there is no delivery guarantee
type NATS struct {
	conn *nats.Conn
}

func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

func (n *NATS) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Forget encodes v as JSON and publishes it, logging instead of returning
// any failure
func Forget(ctx context.Context, p Publisher, subject string, v any) {
	if p == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.WithField("subject", subject).Warnf("Failed to encode notification: %v", err)
		return
	}
	if err := p.Publish(ctx, subject, data); err != nil {
		log.WithField("subject", subject).Warnf("Failed to publish notification: %v", err)
	}
}
