package memory

import (
	"context"
	"fmt"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
	"qochi/pkg/platform/sentinel"
)

// table stages writes to one entity map. Reads fall through to the base map
// and remember the version they saw so commit can detect lost updates.
type table[K comparable, V any] struct {
	base    func() map[K]V
	staged  map[K]V
	created map[K]bool
	seen    map[K]int
	order   []K

	clone      func(V) V
	versionOf  func(V) int
	setVersion func(V, int)
}

func newTable[K comparable, V any](base func() map[K]V, clone func(V) V, versionOf func(V) int, setVersion func(V, int)) *table[K, V] {
	return &table[K, V]{
		base:       base,
		staged:     make(map[K]V),
		created:    make(map[K]bool),
		seen:       make(map[K]int),
		clone:      clone,
		versionOf:  versionOf,
		setVersion: setVersion,
	}
}

// get must be called with the base read lock held.
func (t *table[K, V]) get(k K) (V, bool) {
	if v, ok := t.staged[k]; ok {
		return t.clone(v), true
	}
	v, ok := t.base()[k]
	if !ok {
		var zero V
		return zero, false
	}
	if _, tracked := t.seen[k]; !tracked {
		t.seen[k] = t.versionOf(v)
	}
	return t.clone(v), true
}

func (t *table[K, V]) create(k K, v V) error {
	if _, ok := t.staged[k]; ok {
		return fmt.Errorf("%w: duplicate key", sentinel.ErrConflict)
	}
	if _, ok := t.base()[k]; ok {
		return fmt.Errorf("%w: duplicate key", sentinel.ErrConflict)
	}
	t.staged[k] = t.clone(v)
	t.created[k] = true
	t.order = append(t.order, k)
	return nil
}

// update stages v if its version matches what this transaction last saw.
func (t *table[K, V]) update(k K, v V) error {
	current, ok := t.staged[k]
	if !ok {
		base, exists := t.base()[k]
		if !exists {
			return sentinel.ErrNotFound
		}
		current = base
		if _, tracked := t.seen[k]; !tracked {
			t.seen[k] = t.versionOf(base)
		}
	}
	if t.versionOf(current) != t.versionOf(v) {
		return fmt.Errorf("%w: stale version", sentinel.ErrConflict)
	}
	t.staged[k] = t.clone(v)
	return nil
}

// save creates k when neither the transaction nor the base has it and
// updates it otherwise. A zero-version value over an existing row is stale.
func (t *table[K, V]) save(k K, v V) error {
	if _, ok := t.staged[k]; ok {
		return t.update(k, v)
	}
	if _, ok := t.base()[k]; ok {
		return t.update(k, v)
	}
	return t.create(k, v)
}

// list must be called with the base read lock held.
func (t *table[K, V]) list(match func(V) bool) []V {
	out := make([]V, 0)
	for k, v := range t.base() {
		if s, ok := t.staged[k]; ok {
			v = s
		}
		if match(v) {
			out = append(out, t.clone(v))
		}
	}
	for _, k := range t.order {
		if v := t.staged[k]; match(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}

// validate must be called with the base write lock held.
func (t *table[K, V]) validate() error {
	for k := range t.staged {
		cur, exists := t.base()[k]
		if t.created[k] {
			if exists {
				return fmt.Errorf("%w: concurrent insert", sentinel.ErrConflict)
			}
			continue
		}
		if !exists || t.versionOf(cur) != t.seen[k] {
			return fmt.Errorf("%w: concurrent update", sentinel.ErrConflict)
		}
	}
	return nil
}

// apply must be called with the base write lock held, after validate.
func (t *table[K, V]) apply(onInsert func(V)) {
	base := t.base()
	for k, v := range t.staged {
		if !t.created[k] {
			t.setVersion(v, t.seen[k]+1)
			base[k] = v
		}
	}
	for _, k := range t.order {
		v := t.staged[k]
		t.setVersion(v, 1)
		if onInsert != nil {
			onInsert(v)
		}
		base[k] = v
	}
}

type tx struct {
	store         *Store
	households    *table[id.HouseholdID, *models.Household]
	registrations *table[id.RegistrationID, *models.RegistrationRequest]
	members       *table[id.MemberID, *models.Member]
	requests      *table[id.RequestID, *models.Request]
	cards         *table[id.MemberID, *models.IdentityCard]
}

func newTx(s *Store) *tx {
	return &tx{
		store: s,
		households: newTable(func() map[id.HouseholdID]*models.Household { return s.households },
			(*models.Household).Clone,
			func(h *models.Household) int { return h.Version },
			func(h *models.Household, v int) { h.Version = v }),
		registrations: newTable(func() map[id.RegistrationID]*models.RegistrationRequest { return s.registrations },
			(*models.RegistrationRequest).Clone,
			func(r *models.RegistrationRequest) int { return r.Version },
			func(r *models.RegistrationRequest, v int) { r.Version = v }),
		members: newTable(func() map[id.MemberID]*models.Member { return s.members },
			(*models.Member).Clone,
			func(m *models.Member) int { return m.Version },
			func(m *models.Member, v int) { m.Version = v }),
		requests: newTable(func() map[id.RequestID]*models.Request { return s.requests },
			(*models.Request).Clone,
			func(r *models.Request) int { return r.Version },
			func(r *models.Request, v int) { r.Version = v }),
		cards: newTable(func() map[id.MemberID]*models.IdentityCard { return s.cards },
			(*models.IdentityCard).Clone,
			func(c *models.IdentityCard) int { return c.Version },
			func(c *models.IdentityCard, v int) { c.Version = v }),
	}
}

func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, validate := range []func() error{
		t.households.validate,
		t.registrations.validate,
		t.members.validate,
		t.requests.validate,
		t.cards.validate,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	t.households.apply(nil)
	t.registrations.apply(nil)
	t.members.apply(nil)
	t.requests.apply(func(r *models.Request) {
		s.seq++
		r.Seq = s.seq
	})
	t.cards.apply(nil)
	return nil
}

func (t *tx) CreateHousehold(ctx context.Context, h *models.Household) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.households.create(h.ID, h)
}

func (t *tx) UpdateHousehold(ctx context.Context, h *models.Household) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.households.update(h.ID, h)
}

func (t *tx) FindHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	h, ok := t.households.get(householdID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return h, nil
}

func (t *tx) ListHouseholds(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := t.households.list(filter.Matches)
	sortHouseholds(out)
	return out, nil
}

func (t *tx) CreateRegistration(ctx context.Context, r *models.RegistrationRequest) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.registrations.create(r.ID, r)
}

func (t *tx) UpdateRegistration(ctx context.Context, r *models.RegistrationRequest, from models.RequestStatus) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	cur, ok := t.registrations.get(r.ID)
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Status != from {
		return sentinel.ErrInvalidState
	}
	return t.registrations.update(r.ID, r)
}

func (t *tx) FindRegistration(ctx context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	r, ok := t.registrations.get(regID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r, nil
}

func (t *tx) ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]*models.RegistrationRequest, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := t.registrations.list(filter.Matches)
	sortRegistrations(out)
	return out, nil
}

func (t *tx) CreateMember(ctx context.Context, m *models.Member) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.members.create(m.ID, m)
}

func (t *tx) UpdateMember(ctx context.Context, m *models.Member) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.members.update(m.ID, m)
}

func (t *tx) FindMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	m, ok := t.members.get(memberID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m, nil
}

func (t *tx) ListMembers(ctx context.Context, filter models.MemberFilter) ([]*models.Member, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := t.members.list(filter.Matches)
	sortMembers(out)
	return out, nil
}

func (t *tx) CreateRequest(ctx context.Context, r *models.Request) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.requests.create(r.ID, r)
}

// UpdateRequest stages r only if the stored request is still in from.
func (t *tx) UpdateRequest(ctx context.Context, r *models.Request, from models.RequestStatus) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	cur, ok := t.requests.get(r.ID)
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Status != from {
		return sentinel.ErrInvalidState
	}
	return t.requests.update(r.ID, r)
}

func (t *tx) FindRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	r, ok := t.requests.get(reqID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r, nil
}

func (t *tx) ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := t.requests.list(filter.Matches)
	sortRequests(out)
	return out, nil
}

func (t *tx) FindCard(ctx context.Context, memberID id.MemberID) (*models.IdentityCard, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	c, ok := t.cards.get(memberID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c, nil
}

func (t *tx) SaveCard(ctx context.Context, c *models.IdentityCard) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.cards.save(c.MemberID, c)
}
