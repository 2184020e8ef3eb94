package coupon

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memRepo is an in-memory Repository with the same transition semantics the
// postgres implementation provides: conditional mark-used, unique codes, and
// the per-order issuance flag flipped atomically with the insert.
type memRepo struct {
	mu      sync.Mutex
	byID    map[string]*Coupon
	flagged map[string]bool // order id -> coupon already generated

	insertErr error
	codeTaken int // force this many ErrCodeTaken results before accepting
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:    make(map[string]*Coupon),
		flagged: make(map[string]bool),
	}
}

func (m *memRepo) Insert(_ context.Context, c *Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return m.insertErr
	}
	if m.codeTaken > 0 {
		m.codeTaken--
		return ErrCodeTaken
	}
	for _, existing := range m.byID {
		if existing.Code == c.Code {
			return ErrCodeTaken
		}
	}
	// The flag holds for manual issuance too; an order mints one coupon
	// regardless of how the second attempt arrives.
	if m.flagged[c.OrderTrigger] {
		return ErrAlreadyIssued
	}

	cp := *c
	m.byID[c.ID] = &cp
	m.flagged[c.OrderTrigger] = true
	return nil
}

func (m *memRepo) FindByID(_ context.Context, id string) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.byID {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) ListByUser(_ context.Context, userID string) ([]Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Coupon
	for _, c := range m.byID {
		if c.CreatedFor == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.byID {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) MarkUsed(_ context.Context, id, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := c.InvalidityAt(now); err != nil {
		return err
	}
	c.IsUsed = true
	c.UsedAt = &now
	c.UsedBy = userID
	return nil
}

func (m *memRepo) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return nil
	}
	c.IsUsed = false
	c.UsedAt = nil
	c.UsedBy = ""
	return nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Coupon, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Coupon
	for _, c := range m.byID {
		if f.IsUsed != nil && c.IsUsed != *f.IsUsed {
			continue
		}
		if f.IsActive != nil && c.IsActive != *f.IsActive {
			continue
		}
		if f.Tier != "" && c.TriggerTier != f.Tier {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Stats(_ context.Context, now time.Time) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Stats{}
	for _, c := range m.byID {
		s.Total++
		switch {
		case c.IsUsed:
			s.Used++
		case !now.Before(c.ExpiresAt):
			s.Expired++
		case c.IsActive:
			s.Active++
		}
	}
	return s, nil
}
