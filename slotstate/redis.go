package slotstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore mirrors tracked slots into Redis for dashboards and other
// tools on the layout network. It is write-only from the recycler's point
// of view; tracked state is never reloaded from it.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func slotKey(slot int) string {
	return fmt.Sprintf("slotrecycler:slot:%d", slot)
}

func reclaimCountKey(address int) string {
	return fmt.Sprintf("slotrecycler:address:%d:reclaims", address)
}

const allSlotsKey = "slotrecycler:slots"

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) GetAllSlotNumbers(ctx context.Context) ([]int, error) {
	members, err := r.client.SMembers(ctx, allSlotsKey).Result()
	if err != nil {
		return nil, err
	}
	return parseSlotNumbers(members), nil
}

// SyncSlots writes every view and removes slots no longer tracked.
func (r *RedisStore) SyncSlots(ctx context.Context, views []*SlotView) error {
	existing, err := r.GetAllSlotNumbers(ctx)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	for _, slot := range staleSlots(existing, views) {
		pipe.Del(ctx, slotKey(slot))
		pipe.SRem(ctx, allSlotsKey, slot)
	}
	for _, v := range views {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.Set(ctx, slotKey(v.Slot), data, 0)
		pipe.SAdd(ctx, allSlotsKey, v.Slot)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// IncrementReclaimCount counts reclamations per locomotive address.
func (r *RedisStore) IncrementReclaimCount(ctx context.Context, address int) (int64, error) {
	return r.client.Incr(ctx, reclaimCountKey(address)).Result()
}

func (r *RedisStore) GetReclaimCount(ctx context.Context, address int) (int64, error) {
	val, err := r.client.Get(ctx, reclaimCountKey(address)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	slots, err := r.GetAllSlotNumbers(ctx)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	for _, slot := range slots {
		pipe.Del(ctx, slotKey(slot))
	}
	pipe.Del(ctx, allSlotsKey)
	_, err = pipe.Exec(ctx)
	return err
}

func parseSlotNumbers(members []string) []int {
	slots := make([]int, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		slots = append(slots, n)
	}
	return slots
}

func staleSlots(existing []int, views []*SlotView) []int {
	live := make(map[int]struct{}, len(views))
	for _, v := range views {
		live[v.Slot] = struct{}{}
	}
	var stale []int
	for _, slot := range existing {
		if _, ok := live[slot]; !ok {
			stale = append(stale, slot)
		}
	}
	return stale
}
