// Package redis stores registrations in KeyDB/Redis.
//
// Layout, under a configurable prefix:
//
//	{prefix}:seq                 id sequence (INCR, never rewound by Clear)
//	{prefix}:registration:{id}   wire-encoded registration
//	{prefix}:owner:{owner}       set of the owner's ids
//	{prefix}:ids                 set of every stored id
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/architeacher/u2f-registrations/internal/adapters/wire"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "registrations"

	scanBatch = 200
)

type Repository struct {
	client goredis.UniversalClient
	prefix string
	clock  clock.Clock
	policy model.ExpirationPolicy
	logger logger.Logger
}

func NewRepository(
	client goredis.UniversalClient,
	prefix string,
	clk clock.Clock,
	policy model.ExpirationPolicy,
	log logger.Logger,
) *Repository {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	if clk == nil {
		clk = clock.System()
	}

	return &Repository{
		client: client,
		prefix: prefix,
		clock:  clk,
		policy: policy,
		logger: log.Component("redis_repository"),
	}
}

func (r *Repository) RegisterDevice(ctx context.Context, reg *model.Registration) (*model.Registration, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	now := r.clock.Now()

	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return nil, unavailable("allocating id", err)
	}

	persisted := reg.Persisted(model.RegistrationID(seq), now)

	data, err := wire.Encode(persisted)
	if err != nil {
		return nil, err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.registrationKey(persisted.ID), data, 0)
		pipe.SAdd(ctx, r.ownerKey(persisted.Owner), persisted.ID.String())
		pipe.SAdd(ctx, r.idsKey(), persisted.ID.String())

		return nil
	})
	if err != nil {
		return nil, unavailable("storing registration", err)
	}

	return persisted, nil
}

func (r *Repository) GetRegisteredDevice(ctx context.Context, id model.RegistrationID) (*model.Registration, error) {
	data, err := r.client.Get(ctx, r.registrationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, model.ErrRegistrationNotFound
		}

		return nil, unavailable("reading registration", err)
	}

	reg, err := wire.Decode(data)
	if err != nil {
		return nil, err
	}

	if r.policy.IsExpired(reg, r.clock.Now()) {
		return nil, model.ErrRegistrationNotFound
	}

	return reg, nil
}

func (r *Repository) GetRegisteredDevices(ctx context.Context, owner string) ([]*model.Registration, error) {
	regs, err := r.loadSet(ctx, r.ownerKey(owner))
	if err != nil {
		return nil, err
	}

	return r.policy.Active(regs, r.clock.Now()), nil
}

func (r *Repository) ListRegisteredDevices(ctx context.Context) ([]*model.Registration, error) {
	regs, err := r.loadSet(ctx, r.idsKey())
	if err != nil {
		return nil, err
	}

	return r.policy.Active(regs, r.clock.Now()), nil
}

func (r *Repository) IsActivated(ctx context.Context, owner string) (bool, error) {
	regs, err := r.GetRegisteredDevices(ctx, owner)
	if err != nil {
		return false, err
	}

	return len(regs) > 0, nil
}

func (r *Repository) RemoveDevice(ctx context.Context, id model.RegistrationID) error {
	data, err := r.client.Get(ctx, r.registrationKey(id)).Bytes()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return unavailable("reading registration", err)
	}

	owner := ""

	if err == nil {
		reg, decodeErr := wire.Decode(data)
		if decodeErr != nil {
			return decodeErr
		}

		owner = reg.Owner
	}

	return r.remove(ctx, map[model.RegistrationID]string{id: owner})
}

// RemoveAll deletes the owner's registrations read in one SMEMBERS. Only those
// members leave the owner index, so a registration added meanwhile survives.
func (r *Repository) RemoveAll(ctx context.Context, owner string) error {
	if owner == "" {
		return nil
	}

	members, err := r.client.SMembers(ctx, r.ownerKey(owner)).Result()
	if err != nil {
		return unavailable("listing owner registrations", err)
	}

	if len(members) == 0 {
		return nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, member := range members {
			pipe.Del(ctx, r.prefix+":registration:"+member)
			pipe.SRem(ctx, r.idsKey(), member)
			pipe.SRem(ctx, r.ownerKey(owner), member)
		}

		return nil
	})
	if err != nil {
		return unavailable("removing owner registrations", err)
	}

	return nil
}

func (r *Repository) PurgeExpired(ctx context.Context) (int, error) {
	regs, err := r.loadSet(ctx, r.idsKey())
	if err != nil {
		return 0, err
	}

	expired := r.policy.Expired(regs, r.clock.Now())
	if len(expired) == 0 {
		return 0, nil
	}

	targets := make(map[model.RegistrationID]string, len(expired))
	for _, reg := range expired {
		targets[reg.ID] = reg.Owner
	}

	if err := r.remove(ctx, targets); err != nil {
		return 0, err
	}

	r.logger.Info().Int("removed", len(expired)).Msg("expired registrations purged")

	return len(expired), nil
}

// Clear drops every registration key and index but keeps the id sequence.
func (r *Repository) Clear(ctx context.Context) error {
	keys := []string{r.idsKey()}

	for _, pattern := range []string{r.prefix + ":registration:*", r.prefix + ":owner:*"} {
		iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}

		if err := iter.Err(); err != nil {
			return unavailable("scanning keys", err)
		}
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("clearing registrations", err)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}

	return nil
}

// loadSet reads every registration whose id is a member of setKey, ordered
// by id. Index entries whose registration is gone are skipped.
func (r *Repository) loadSet(ctx context.Context, setKey string) ([]*model.Registration, error) {
	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, unavailable("listing registrations", err)
	}

	regs := make([]*model.Registration, 0, len(members))
	if len(members) == 0 {
		return regs, nil
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		keys = append(keys, r.prefix+":registration:"+member)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("reading registrations", err)
	}

	for index, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		reg, err := wire.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keys[index], err)
		}

		regs = append(regs, reg)
	}

	slices.SortFunc(regs, func(a, b *model.Registration) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return regs, nil
}

// remove deletes the given ids. An empty owner means the owner is unknown and
// only the global index is touched.
func (r *Repository) remove(ctx context.Context, targets map[model.RegistrationID]string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for id, owner := range targets {
			member := strconv.FormatUint(uint64(id), 10)

			pipe.Del(ctx, r.registrationKey(id))
			pipe.SRem(ctx, r.idsKey(), member)

			if owner != "" {
				pipe.SRem(ctx, r.ownerKey(owner), member)
			}
		}

		return nil
	})
	if err != nil {
		return unavailable("removing registrations", err)
	}

	return nil
}

func (r *Repository) seqKey() string {
	return r.prefix + ":seq"
}

func (r *Repository) idsKey() string {
	return r.prefix + ":ids"
}

func (r *Repository) registrationKey(id model.RegistrationID) string {
	return r.prefix + ":registration:" + id.String()
}

func (r *Repository) ownerKey(owner string) string {
	return r.prefix + ":owner:" + owner
}

func unavailable(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrStoreUnavailable, action, err)
}
