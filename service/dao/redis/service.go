// Package redis provides a dao.Store on Redis.
//
// Instances are hashes holding a revision and a JSON body; create and
// compare-and-swap run as Lua scripts so they are atomic on the server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/dao/criteria"
	"github.com/viant/intake/service/identity"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "intake:"

// maxAttempts bounds optimistic retries when a concurrent writer bumps the revision.
const maxAttempts = 5

// createScript inserts an instance unless its id or identity exists.
// KEYS[1] = instance hash, KEYS[2] = identity key, KEYS[3] = instance index
// ARGV[1] = id, ARGV[2] = revision, ARGV[3] = body, ARGV[4] = created score
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
    return 0
end
redis.call("HSET", KEYS[1], "revision", ARGV[2], "body", ARGV[3])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[4], ARGV[1])
return 1
`)

// casScript replaces an instance body when the stored revision matches.
// KEYS[1] = instance hash
// ARGV[1] = expected revision, ARGV[2] = next revision, ARGV[3] = body
var casScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "revision")
if not current then
    return -1
end
if current ~= ARGV[1] then
    return 0
end
redis.call("HSET", KEYS[1], "revision", ARGV[2], "body", ARGV[3])
return 1
`)

// Service implements dao.Store on Redis.
type Service struct {
	client redis.UniversalClient
	prefix string
}

var _ dao.Store = (*Service)(nil)

// New wraps client; empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Service {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Service{client: client, prefix: prefix}
}

// Open connects to a single Redis server and checks it responds.
func Open(ctx context.Context, addr, password string, db int, prefix string) (*Service, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %v: %w", addr, err)
	}
	return New(client, prefix), nil
}

// PutIfAbsent stores s unless identity is already present.
func (s *Service) PutIfAbsent(ctx context.Context, id identity.Identity, sub *submission.Submission) (bool, error) {
	if !id.Valid() {
		return false, dao.ErrInvalidID
	}
	if sub == nil {
		return false, dao.ErrNilEntity
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("failed to marshal submission: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.key("submission", string(id)), body, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to store submission: %w", err)
	}
	return created, nil
}

// LoadSubmission returns the submission stored under id.
func (s *Service) LoadSubmission(ctx context.Context, id identity.Identity) (*submission.Submission, error) {
	data, err := s.client.Get(ctx, s.key("submission", string(id))).Bytes()
	if err != nil {
		return nil, notFound(err)
	}
	ret := &submission.Submission{}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission: %w", err)
	}
	return ret, nil
}

// Create persists a new instance.
func (s *Service) Create(ctx context.Context, instance *workflow.Instance) error {
	if instance == nil {
		return dao.ErrNilEntity
	}
	if instance.ID == "" {
		return dao.ErrInvalidID
	}
	body, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	keys := []string{s.key("instance", instance.ID), s.key("identity", string(instance.Identity)), s.key("instances")}
	created, err := createScript.Run(ctx, s.client, keys, instance.ID, instance.Revision, body, instance.CreatedAt.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("failed to create instance: %w", err)
	}
	if created == 0 {
		return dao.ErrDuplicate
	}
	return nil
}

// Load returns the instance.
func (s *Service) Load(ctx context.Context, id string) (*workflow.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	instance, _, err := s.load(ctx, id)
	return instance, err
}

func (s *Service) load(ctx context.Context, id string) (*workflow.Instance, string, error) {
	values, err := s.client.HMGet(ctx, s.key("instance", id), "revision", "body").Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load instance %v: %w", id, err)
	}
	revision, _ := values[0].(string)
	body, _ := values[1].(string)
	if revision == "" || body == "" {
		return nil, "", dao.ErrNotFound
	}
	instance := &workflow.Instance{}
	if err := json.Unmarshal([]byte(body), instance); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal instance %v: %w", id, err)
	}
	if instance.Revision, err = strconv.Atoi(revision); err != nil {
		return nil, "", fmt.Errorf("invalid revision for instance %v: %w", id, err)
	}
	return instance, revision, nil
}

// LoadByIdentity returns the instance created for identity.
func (s *Service) LoadByIdentity(ctx context.Context, id identity.Identity) (*workflow.Instance, error) {
	instanceID, err := s.client.Get(ctx, s.key("identity", string(id))).Result()
	if err != nil {
		return nil, notFound(err)
	}
	return s.Load(ctx, instanceID)
}

// List returns matching instances ordered by creation time.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*workflow.Instance, error) {
	ids, err := s.client.ZRange(ctx, s.key("instances"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	var ret []*workflow.Instance
	for _, id := range ids {
		instance, _, err := s.load(ctx, id)
		if errors.Is(err, dao.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if criteria.Match(instance, parameters) {
			ret = append(ret, instance)
		}
	}
	dao.SortInstances(ret)
	return ret, nil
}

// Transition is the compare-and-swap on a single instance.
func (s *Service) Transition(ctx context.Context, id string, expect dao.Expectation, mutate dao.Mutation) (*workflow.Instance, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, revision, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := dao.Apply(current, expect, mutate)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal instance: %w", err)
		}
		status, err := casScript.Run(ctx, s.client, []string{s.key("instance", id)}, revision, next.Revision, body).Int()
		if err != nil {
			return nil, fmt.Errorf("failed to update instance %v: %w", id, err)
		}
		switch status {
		case 1:
			return next, nil
		case -1:
			return nil, dao.ErrNotFound
		}
	}
	return nil, fmt.Errorf("instance %v: %w", id, dao.ErrConflict)
}

// BindToken maps tokenHash to instanceID.
func (s *Service) BindToken(ctx context.Context, tokenHash, instanceID string) error {
	if tokenHash == "" || instanceID == "" {
		return dao.ErrInvalidID
	}
	if err := s.client.Set(ctx, s.key("token", tokenHash), instanceID, 0).Err(); err != nil {
		return fmt.Errorf("failed to bind token: %w", err)
	}
	return nil
}

// ResolveToken returns the instance id bound to tokenHash.
func (s *Service) ResolveToken(ctx context.Context, tokenHash string) (string, error) {
	id, err := s.client.Get(ctx, s.key("token", tokenHash)).Result()
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}

// RevokeToken removes tokenHash; revoking an unknown hash is a no-op.
func (s *Service) RevokeToken(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key("token", tokenHash)).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Service) Close() error {
	return s.client.Close()
}

func (s *Service) key(elements ...string) string {
	ret := s.prefix
	for i, element := range elements {
		if i > 0 {
			ret += ":"
		}
		ret += element
	}
	return ret
}

func notFound(err error) error {
	if errors.Is(err, redis.Nil) {
		return dao.ErrNotFound
	}
	return err
}
