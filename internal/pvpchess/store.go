package pvpchess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-server/internal/obslog"
)

// Redis layout:
//
//	pvp:game:<id>          JSON Game, expires after Config.TTL
//	pvp:index:user:<user>  set of game ids the user plays in
//	pvp:updates:<id>       pub/sub channel carrying every stored state
const (
	gamePrefix    = "pvp:game:"
	userPrefix    = "pvp:index:user:"
	updatesPrefix = "pvp:updates:"
)

func gameKey(id string) string        { return gamePrefix + strings.TrimSpace(id) }
func idxUserKey(userID string) string { return userPrefix + strings.TrimSpace(userID) }
func updatesChannel(id string) string { return updatesPrefix + strings.TrimSpace(id) }

func decodeGame(raw []byte) (*Game, error) {
	g := new(Game)
	if err := json.Unmarshal(raw, g); err != nil {
		return nil, err
	}
	return g, nil
}

// load reads a game through any redis.Cmdable, so the same code serves plain reads and
// reads inside a WATCH.
func load(ctx context.Context, c redis.Cmdable, id string) (*Game, error) {
	raw, err := c.Get(ctx, gameKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrGameNotFound
	case err != nil:
		return nil, err
	}
	g, err := decodeGame(raw)
	if err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return g, nil
}

func (m *Manager) get(ctx context.Context, id string) (*Game, error) {
	return load(ctx, m.rdb, id)
}

func (m *Manager) save(ctx context.Context, g *Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, gameKey(g.ID), raw, m.cfg.TTL).Err()
}

// update is an optimistic read-modify-write of one game. fn errors abort without a
// write; losing the WATCH race MaxRetries times yields ErrConflict. The stored state
// is published on success.
func (m *Manager) update(ctx context.Context, id string, fn func(*Game) error) (*Game, error) {
	key := gameKey(id)
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		var next *Game
		err := m.rdb.Watch(ctx, func(tx *redis.Tx) error {
			g, err := load(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := fn(g); err != nil {
				return err
			}
			raw, err := json.Marshal(g)
			if err != nil {
				return err
			}
			if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				return p.Set(ctx, key, raw, m.cfg.TTL).Err()
			}); err != nil {
				return err
			}
			next = g
			return nil
		}, key)

		switch {
		case err == nil:
			m.publish(ctx, next)
			return next, nil
		case errors.Is(err, redis.TxFailedErr):
			obslog.L().Debug("pvp_tx_retry", zap.String("game_id", id), zap.Int("attempt", attempt))
		default:
			return nil, err
		}
	}
	return nil, ErrConflict
}

func (m *Manager) publish(ctx context.Context, g *Game) {
	raw, err := json.Marshal(g)
	if err == nil {
		err = m.rdb.Publish(ctx, updatesChannel(g.ID), raw).Err()
	}
	if err != nil {
		obslog.L().Warn("pvp_publish_error", zap.String("game_id", g.ID), zap.Error(err))
	}
}

// indexParticipants adds id to each player's index, which lives as long as the game.
func (m *Manager) indexParticipants(ctx context.Context, id string, users ...string) error {
	_, err := m.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, u := range users {
			if strings.TrimSpace(u) == "" {
				continue
			}
			p.SAdd(ctx, idxUserKey(u), id)
			p.Expire(ctx, idxUserKey(u), m.cfg.TTL)
		}
		return nil
	})
	return err
}

// activeGames lists the user's ACTIVE games, most recently updated first. Ids whose
// game already expired are dropped from the index.
func (m *Manager) activeGames(ctx context.Context, userID string) ([]*Game, error) {
	key := idxUserKey(userID)
	ids, err := m.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var (
		list  []*Game
		stale []any
	)
	for _, id := range ids {
		g, err := m.get(ctx, id)
		if errors.Is(err, ErrGameNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if g.Status == StatusActive {
			list = append(list, g)
		}
	}
	if len(stale) > 0 {
		_ = m.rdb.SRem(ctx, key, stale...).Err()
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

// ParseRedisURL turns redis://[:password@]host:port/db (or rediss:// for TLS) into
// client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}
