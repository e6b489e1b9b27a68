// Package memory implements the repository interfaces in process memory.
// It enforces the same unique keys as the Postgres schema (dm_key,
// entity_id, endpoint) so find-or-create and pruning behave the same way
// in tests as against the database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	channels map[uuid.UUID]models.Channel
	users    map[string]models.User
	agents   map[uuid.UUID]models.Agent
	roles    map[string]models.Role
	subs     map[string]models.PushSubscription
	messages []models.Message
}

func New() *Store {
	return &Store{
		channels: make(map[uuid.UUID]models.Channel),
		users:    make(map[string]models.User),
		agents:   make(map[uuid.UUID]models.Agent),
		roles:    make(map[string]models.Role),
		subs:     make(map[string]models.PushSubscription),
	}
}

// Seeding helpers.

func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutAgent(a models.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
}

func (s *Store) PutRole(r models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.Name] = r
}

// ChannelCount returns how many channels exist.
func (s *Store) ChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// Channels views the store as a repository.ChannelRepository.
func (s *Store) Channels() repository.ChannelRepository { return channelRepo{s} }

// Users views the store as a repository.UserRepository.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Agents views the store as a repository.AgentRepository.
func (s *Store) Agents() repository.AgentRepository { return agentRepo{s} }

// Roles views the store as a repository.RoleRepository.
func (s *Store) Roles() repository.RoleRepository { return roleRepo{s} }

// PushSubscriptions views the store as a repository.PushSubscriptionRepository.
func (s *Store) PushSubscriptions() repository.PushSubscriptionRepository { return subRepo{s} }

// Messages views the store as a repository.MessageRepository.
func (s *Store) Messages() repository.MessageRepository { return messageRepo{s} }

type channelRepo struct{ s *Store }

func (r channelRepo) Create(_ context.Context, ch *models.Channel) (*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.channels {
		if ch.DMKey != nil && existing.DMKey != nil && *existing.DMKey == *ch.DMKey {
			return nil, repository.ErrConflict
		}
		if ch.EntityID != nil && existing.EntityID != nil && *existing.EntityID == *ch.EntityID {
			return nil, repository.ErrConflict
		}
	}

	created := *ch
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	r.s.channels[created.ID] = created
	return &created, nil
}

func (r channelRepo) GetByID(_ context.Context, channelID uuid.UUID) (*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ch, ok := r.s.channels[channelID]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (r channelRepo) GetByDMKey(_ context.Context, dmKey string) (*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ch := range r.s.channels {
		if ch.DMKey != nil && *ch.DMKey == dmKey {
			return &ch, nil
		}
	}
	return nil, nil
}

func (r channelRepo) GetByEntityID(_ context.Context, entityID string) (*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ch := range r.s.channels {
		if ch.EntityID != nil && *ch.EntityID == entityID {
			return &ch, nil
		}
	}
	return nil, nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type agentRepo struct{ s *Store }

func (r agentRepo) GetByID(_ context.Context, agentID uuid.UUID) (*models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[agentID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

type roleRepo struct{ s *Store }

func (r roleRepo) GetByName(_ context.Context, name string) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[name]
	if !ok {
		return nil, nil
	}
	return &role, nil
}

func (r roleRepo) GetDefault(_ context.Context) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if role.IsDefault {
			return &role, nil
		}
	}
	return nil, nil
}

func (r roleRepo) List(_ context.Context) ([]models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	roles := make([]models.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r roleRepo) SetDefault(_ context.Context, name string) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	target, ok := r.s.roles[name]
	if !ok {
		return nil, nil
	}
	for n, role := range r.s.roles {
		role.IsDefault = n == name
		r.s.roles[n] = role
	}
	target.IsDefault = true
	return &target, nil
}

type subRepo struct{ s *Store }

func (r subRepo) Upsert(_ context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.subs[sub.Endpoint]
	if ok && stored.UserID != sub.UserID {
		return nil, repository.ErrConflict
	}
	if !ok {
		stored = models.PushSubscription{
			ID:        uuid.New(),
			Endpoint:  sub.Endpoint,
			CreatedAt: time.Now(),
		}
	}
	stored.UserID = sub.UserID
	stored.Auth = sub.Auth
	stored.P256dh = sub.P256dh
	r.s.subs[sub.Endpoint] = stored
	return &stored, nil
}

func (r subRepo) ListByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	subs := make([]models.PushSubscription, 0)
	for _, sub := range r.s.subs {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Endpoint < subs[j].Endpoint })
	return subs, nil
}

func (r subRepo) DeleteByEndpoint(_ context.Context, endpoint string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.subs, endpoint)
	return nil
}

func (r subRepo) DeleteForUser(_ context.Context, userID, endpoint string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[endpoint]
	if !ok || sub.UserID != userID {
		return false, nil
	}
	delete(r.s.subs, endpoint)
	return true, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, channelID uuid.UUID, senderID string, body string) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg := models.Message{
		ID:        int64(len(r.s.messages) + 1),
		ChannelID: channelID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.Now(),
	}
	r.s.messages = append(r.s.messages, msg)
	return &msg, nil
}

func (r messageRepo) ListByChannel(_ context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Message, 0)
	for i := len(r.s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := r.s.messages[i]
		if msg.ChannelID != channelID {
			continue
		}
		if before > 0 && msg.ID >= before {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
