// Package journal keeps a Redis copy of the stock each open cart holds.
//
// Carts live in process memory. If the process dies, the journal is the only
// record of which reservations were never committed or released, and the
// reaper uses it to give that stock back.
package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// recordScript applies a reservation delta and drops the field once nothing is
// held, keeping the activity index current in the same step.
var recordScript = redis.NewScript(`
local held = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if held <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
return held
`)

type Journal struct {
	client    *redis.Client
	namespace string
	now       func() time.Time
}

func Open(ctx context.Context, redisURL, namespace string) (*Journal, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(client, namespace), nil
}

func New(client *redis.Client, namespace string) *Journal {
	return &Journal{client: client, namespace: namespace, now: time.Now}
}

func (j *Journal) Close() error {
	return j.client.Close()
}

func (j *Journal) cartKey(cartID string) string {
	return j.namespace + ":cart:" + cartID
}

func (j *Journal) activityKey() string {
	return j.namespace + ":activity"
}

func (j *Journal) Record(ctx context.Context, cartID, productID string, delta int) error {
	err := recordScript.Run(ctx, j.client,
		[]string{j.cartKey(cartID), j.activityKey()},
		productID, delta, j.now().UnixMilli(), cartID,
	).Err()
	if err != nil {
		return fmt.Errorf("record reservation: %w", err)
	}
	return nil
}

func (j *Journal) Touch(ctx context.Context, cartID string) error {
	err := j.client.ZAdd(ctx, j.activityKey(), &redis.Z{
		Score:  float64(j.now().UnixMilli()),
		Member: cartID,
	}).Err()
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func (j *Journal) Forget(ctx context.Context, cartID string) error {
	_, err := j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, j.cartKey(cartID))
		pipe.ZRem(ctx, j.activityKey(), cartID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("forget cart: %w", err)
	}
	return nil
}

// Stale lists carts whose last recorded activity is before the cutoff.
func (j *Journal) Stale(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := j.client.ZRangeByScore(ctx, j.activityKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list stale carts: %w", err)
	}
	return ids, nil
}

func (j *Journal) Reservations(ctx context.Context, cartID string) (map[string]int, error) {
	fields, err := j.client.HGetAll(ctx, j.cartKey(cartID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read reservations: %w", err)
	}

	held := make(map[string]int, len(fields))
	for productID, raw := range fields {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse reservation for %s: %w", productID, err)
		}
		held[productID] = qty
	}
	return held, nil
}
