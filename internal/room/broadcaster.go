package room

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisChannel = "collabx:rooms"

// envelope is what travels over the redis channel between instances.
type envelope struct {
	Room    string          `json:"room"`
	Exclude string          `json:"exclude,omitempty"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Broadcaster fans an event out to every member of a room, optionally
// excluding the originating connection so a client never receives its own
// optimistic edit back. With redis configured, the event also reaches members
// connected to other instances; without it, delivery is local only.
type Broadcaster struct {
	registry *Registry
	redis    *redis.Client
	instance string
	log      zerolog.Logger
}

func NewBroadcaster(registry *Registry, redisClient *redis.Client, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		redis:    redisClient,
		instance: uuid.NewString(),
		log:      log.With().Str("component", "broadcaster").Logger(),
	}
}

// Broadcast delivers payload to every member of roomKey except excludeConnID
// ("" excludes nobody). Best-effort: a member that vanished or cannot keep up
// is logged and reaped, never surfaced as an error to the caller.
func (b *Broadcaster) Broadcast(roomKey string, payload []byte, excludeConnID string) {
	b.deliverLocal(roomKey, payload, excludeConnID)

	if b.redis == nil {
		return
	}
	env, err := json.Marshal(envelope{
		Room:    roomKey,
		Exclude: excludeConnID,
		Origin:  b.instance,
		Payload: payload,
	})
	if err != nil {
		b.log.Error().Err(err).Str("room", roomKey).Msg("marshal envelope")
		return
	}
	if err := b.redis.Publish(context.Background(), redisChannel, env).Err(); err != nil {
		b.log.Error().Err(err).Str("room", roomKey).Msg("redis publish")
	}
}

// SendTo delivers payload to a single connection, used for requester-only
// replies (hidden bot responses, execution results, bootstrap snapshots).
func (b *Broadcaster) SendTo(connID string, payload []byte) {
	sub, ok := b.registry.Get(connID)
	if !ok {
		return
	}
	if err := sub.Send(payload); err != nil {
		b.log.Warn().Err(err).Str("conn", sub.ID()).Msg("send failed, reaping connection")
		b.reap(sub)
	}
}

func (b *Broadcaster) deliverLocal(roomKey string, payload []byte, excludeConnID string) {
	for _, connID := range b.registry.MembersOf(roomKey) {
		if connID == excludeConnID {
			continue
		}
		sub, ok := b.registry.Get(connID)
		if !ok {
			// Disconnected between snapshot and delivery. Skip.
			continue
		}
		if err := sub.Send(payload); err != nil {
			b.log.Warn().Err(err).Str("conn", connID).Str("room", roomKey).
				Msg("send failed, reaping connection")
			b.reap(sub)
		}
	}
}

func (b *Broadcaster) reap(sub Subscriber) {
	b.registry.LeaveAll(sub.ID())
	sub.Close()
}

// SubscribeLoop listens for envelopes published by other instances and
// delivers them to local members. Envelopes from this instance are dropped:
// their local delivery already happened in Broadcast. Runs until ctx ends.
func (b *Broadcaster) SubscribeLoop(ctx context.Context) {
	if b.redis == nil {
		return
	}
	pubsub := b.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Error().Err(err).Msg("bad envelope from redis")
				continue
			}
			if env.Origin == b.instance {
				continue
			}
			// The excluded connection lives on the origin instance, so no
			// exclusion is needed here.
			b.deliverLocal(env.Room, env.Payload, "")
		}
	}
}
