// Package room is the server-side fan-out layer: which connections are
// subscribed to which document, and the cross-instance presence/cursor
// cache that lets multiple collabd processes agree on who's online.
// Generalized from the teacher's gateway/backend/internal/ws Hub and
// collab-service/backend/internal/cache PresenceCache, which were
// user/title-oriented, into the doc-ID/version-oriented shape spec.md's
// Room Router and presence broadcast need.
package room

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Member is one participant currently present in a document's room.
type Member struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

// PresenceCache tracks who's in which document room and their last-known
// cursor, shared across every collabd instance via Redis so presence
// survives a client's connection moving from one instance to another.
type PresenceCache interface {
	AddMember(ctx context.Context, docID, clientID, userID string, ttl time.Duration) error
	RemoveMember(ctx context.Context, docID, clientID string) error
	Members(ctx context.Context, docID string) ([]Member, error)
	SetCursor(ctx context.Context, docID, clientID string, cursor []byte, ttl time.Duration) error
	GetCursor(ctx context.Context, docID, clientID string) ([]byte, error)
}

type redisPresence struct {
	rdb *redis.Client
}

func NewRedisPresence(rdb *redis.Client) PresenceCache {
	return &redisPresence{rdb: rdb}
}

func roomKey(docID string) string      { return "presence:room:" + docID }
func namesKey(docID string) string     { return "presence:room:names:" + docID }
func cursorKey(docID, clientID string) string {
	return "presence:cursor:" + docID + ":" + clientID
}

func (p *redisPresence) AddMember(ctx context.Context, docID, clientID, userID string, ttl time.Duration) error {
	tx := p.rdb.TxPipeline()
	expireAt := time.Now().Add(ttl).Unix()
	tx.ZAdd(ctx, roomKey(docID), redis.Z{Score: float64(expireAt), Member: clientID})
	tx.HSet(ctx, namesKey(docID), clientID, userID)
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) RemoveMember(ctx context.Context, docID, clientID string) error {
	tx := p.rdb.TxPipeline()
	tx.ZRem(ctx, roomKey(docID), clientID)
	tx.HDel(ctx, namesKey(docID), clientID)
	_, err := tx.Exec(ctx)
	return err
}

// membersScript clears anyone whose entry expired before returning the
// alive set, the same evict-then-read shape as the teacher's
// GetAliveMembersWithNames.
const membersScript = `
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if #expired > 0 then
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	redis.call("HDEL", KEYS[2], unpack(expired))
end
return #expired
`

func (p *redisPresence) Members(ctx context.Context, docID string) ([]Member, error) {
	now := time.Now().Unix()
	if _, err := redis.NewScript(membersScript).Run(ctx, p.rdb, []string{roomKey(docID), namesKey(docID)}, now).Result(); err != nil && err != redis.Nil {
		return nil, err
	}

	aliveIDs, err := p.rdb.ZRangeByScore(ctx, roomKey(docID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10),
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}

	names, err := p.rdb.HMGet(ctx, namesKey(docID), aliveIDs...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	members := make([]Member, 0, len(aliveIDs))
	for i, clientID := range aliveIDs {
		userID := ""
		if i < len(names) && names[i] != nil {
			userID, _ = names[i].(string)
		}
		members = append(members, Member{ClientID: clientID, UserID: userID})
	}
	return members, nil
}

func (p *redisPresence) SetCursor(ctx context.Context, docID, clientID string, cursor []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, cursorKey(docID, clientID), cursor, ttl).Err()
}

func (p *redisPresence) GetCursor(ctx context.Context, docID, clientID string) ([]byte, error) {
	b, err := p.rdb.Get(ctx, cursorKey(docID, clientID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return b, err
}

// Documents lists every document with an active presence room. It is not
// part of the PresenceCache interface and the join-doc path does not call
// it.
func (p *redisPresence) Documents(ctx context.Context) ([]string, error) {
	var docs []string
	iter := p.rdb.Scan(ctx, 0, "presence:room:*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if strings.Contains(k, ":names:") {
			continue
		}
		if docID := strings.TrimPrefix(k, "presence:room:"); docID != "" {
			docs = append(docs, docID)
		}
	}
	return docs, iter.Err()
}
