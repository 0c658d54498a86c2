package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"movietrends/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RedisSink publishes every ranking as a sorted set leaderboard under
// <prefix><name>. The set is replaced atomically on each run.
type RedisSink struct {
	data   *Data
	prefix string
	ttl    time.Duration
	log    *log.Helper
}

// NewRedisSink creates a leaderboard sink
func NewRedisSink(data *Data, prefix string, ttl time.Duration, logger log.Logger) *RedisSink {
	return &RedisSink{
		data:   data,
		prefix: prefix,
		ttl:    ttl,
		log:    log.NewHelper(logger),
	}
}

func (s *RedisSink) Emit(ctx context.Context, _ string, r *biz.Ranking) error {
	if s.data.rdb == nil {
		return nil
	}

	key := s.Key(r)
	members := leaderboard(r)
	_, err := s.data.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish leaderboard %s: %w", key, err)
	}
	s.log.Debugf("published %d members to %s", len(members), key)
	return nil
}

// Key returns the sorted set key of a ranking
func (s *RedisSink) Key(r *biz.Ranking) string {
	return s.prefix + r.Name
}

// leaderboard scores movies by average rating for the all-time ranking and by
// rating count otherwise. Members are "<MovieID>:<Title>".
func leaderboard(r *biz.Ranking) []redis.Z {
	members := make([]redis.Z, 0, len(r.Rows))
	for _, row := range r.Rows {
		score := float64(row.Count)
		if r.Kind == biz.KindAverage {
			score = row.AverageRating
		}
		members = append(members, redis.Z{
			Score:  score,
			Member: strconv.Itoa(row.MovieID) + ":" + row.Title,
		})
	}
	return members
}
