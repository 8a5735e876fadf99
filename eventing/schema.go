package eventing

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultSchemaChannel is the channel schema changes are published on when
// none is configured.
const DefaultSchemaChannel = "plancache.schema"

// SchemaChangeType is the value of the "type" header on schema change messages.
const SchemaChangeType = "schema-change"

// SchemaChange announces that a table's definition changed. Version is the
// publisher's schema version after the change and is informational only;
// receivers advance their own version.
type SchemaChange struct {
	Table     string    `msgpack:"table" json:"table"`
	Version   string    `msgpack:"version,omitempty" json:"version,omitempty"`
	Origin    string    `msgpack:"origin,omitempty" json:"origin,omitempty"`
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
}

// NewOrigin returns a random identifier for a publishing process.
func NewOrigin() string {
	return uuid.NewString()
}

// PublishSchemaChange publishes change on channel. A zero Timestamp is set
// to the current time.
func PublishSchemaChange(ctx context.Context, client Client, channel string, change SchemaChange) error {
	if strings.TrimSpace(change.Table) == "" {
		return errors.New("eventing: schema change without table")
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now().UTC()
	}
	data, err := msgpack.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "eventing: marshal schema change")
	}
	return client.Publish(ctx, channel, data, WithHeader("type", SchemaChangeType))
}

// SubscribeSchemaChanges invokes fn for every schema change published on
// channel until ctx is done or the returned Subscriber is closed. Messages
// that are not schema changes are ignored.
func SubscribeSchemaChanges(ctx context.Context, client Client, channel string, fn func(ctx context.Context, change SchemaChange)) (Subscriber, error) {
	return client.Subscribe(ctx, channel, func(ctx context.Context, msg Message) {
		if t := msg.Headers().Get("type"); t != "" && t != SchemaChangeType {
			return
		}
		var change SchemaChange
		if err := msgpack.Unmarshal(msg.Data(), &change); err != nil || change.Table == "" {
			return
		}
		fn(ctx, change)
	})
}
