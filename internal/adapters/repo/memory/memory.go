// Package memory holds in-memory implementations of the domain repositories
// and file storage. They back deterministic tests and local development
// without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slabworks/visualizer/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	orgs        map[uuid.UUID]domain.Organization
	lines       map[uuid.UUID]domain.MaterialLine
	materials   map[uuid.UUID]domain.Material
	kitchens    map[uuid.UUID]domain.KitchenImage
	leads       map[uuid.UUID]domain.Lead
	sessions    map[uuid.UUID]domain.VisitorSession
	assignments map[uuid.UUID]domain.NotificationAssignment
	profiles    map[uuid.UUID]domain.Profile
}

func NewStore() *Store {
	return &Store{
		orgs:        map[uuid.UUID]domain.Organization{},
		lines:       map[uuid.UUID]domain.MaterialLine{},
		materials:   map[uuid.UUID]domain.Material{},
		kitchens:    map[uuid.UUID]domain.KitchenImage{},
		leads:       map[uuid.UUID]domain.Lead{},
		sessions:    map[uuid.UUID]domain.VisitorSession{},
		assignments: map[uuid.UUID]domain.NotificationAssignment{},
		profiles:    map[uuid.UUID]domain.Profile{},
	}
}

// --- OrgRepo ---

func (s *Store) SaveOrganization(_ context.Context, o *domain.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	s.orgs[o.ID] = *o
	return nil
}

func (s *Store) FindOrganization(_ context.Context, id uuid.UUID) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (s *Store) FindOrganizationBySlug(_ context.Context, slug string) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orgs {
		if o.Slug == slug {
			o := o
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) SaveLine(_ context.Context, l *domain.MaterialLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	s.lines[l.ID] = *l
	return nil
}

func (s *Store) FindLine(_ context.Context, id uuid.UUID) (*domain.MaterialLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (s *Store) FindLineBySlug(_ context.Context, slug string) (*domain.MaterialLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lines {
		if l.Slug == slug {
			l := l
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) FindLineByDomain(_ context.Context, host string) (*domain.MaterialLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lines {
		if l.CustomDomain == host && l.DomainVerified {
			l := l
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListLines(_ context.Context, orgID uuid.UUID) ([]domain.MaterialLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MaterialLine
	for _, l := range s.lines {
		if l.OrganizationID == orgID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CountLineSlugs(_ context.Context, slug string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, l := range s.lines {
		if l.Slug == slug {
			n++
		}
	}
	return n, nil
}

// --- MaterialRepo ---

func (s *Store) SaveMaterial(_ context.Context, m *domain.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.materials[m.ID] = *m
	return nil
}

func (s *Store) FindMaterial(_ context.Context, id uuid.UUID) (*domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.materials[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMaterialsByLine(_ context.Context, lineID uuid.UUID) ([]domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Material
	for _, m := range s.materials {
		if m.MaterialLineID == lineID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *Store) DeleteMaterial(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.materials, id)
	return nil
}

func (s *Store) DeleteMaterialsByLine(_ context.Context, lineID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.materials {
		if m.MaterialLineID == lineID {
			delete(s.materials, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) SaveKitchenImage(_ context.Context, k *domain.KitchenImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	s.kitchens[k.ID] = *k
	return nil
}

func (s *Store) ListKitchenImages(_ context.Context, lineID uuid.UUID) ([]domain.KitchenImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.KitchenImage
	for _, k := range s.kitchens {
		if k.MaterialLineID == lineID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (s *Store) CountKitchenImages(_ context.Context, lineID uuid.UUID) (int64, error) {
	imgs, _ := s.ListKitchenImages(context.Background(), lineID)
	return int64(len(imgs)), nil
}

func (s *Store) DeleteKitchenImage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kitchens[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.kitchens, id)
	return nil
}

// --- LeadRepo ---

func (s *Store) SaveLead(ctx context.Context, l *domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	s.leads[l.ID] = *l
	return nil
}

func (s *Store) FindLead(_ context.Context, id uuid.UUID) (*domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (s *Store) ListLeadsByLine(_ context.Context, lineID uuid.UUID, f domain.LeadFilter) ([]domain.Lead, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Lead
	for _, l := range s.leads {
		if l.MaterialLineID == nil || *l.MaterialLineID != lineID {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(l.Name), q) && !strings.Contains(strings.ToLower(l.Email), q) {
				continue
			}
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		lo := (page - 1) * f.PageSize
		if lo > len(out) {
			lo = len(out)
		}
		hi := lo + f.PageSize
		if hi > len(out) {
			hi = len(out)
		}
		out = out[lo:hi]
	}
	return out, total, nil
}

// --- SessionRepo ---

func (s *Store) SaveSession(_ context.Context, v *domain.VisitorSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	v.UpdatedAt = time.Now()
	s.sessions[v.ID] = *v
	return nil
}

func (s *Store) FindSession(_ context.Context, id uuid.UUID) (*domain.VisitorSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (s *Store) FindSessionByPhone(_ context.Context, phone string) (*domain.VisitorSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *domain.VisitorSession
	for _, v := range s.sessions {
		if v.Phone != phone {
			continue
		}
		v := v
		if best == nil || v.CreatedAt.After(best.CreatedAt) {
			best = &v
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

// --- AssignmentRepo ---

func (s *Store) SaveProfile(_ context.Context, p *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *Store) SaveAssignment(_ context.Context, a *domain.NotificationAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.assignments[a.ID] = *a
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.assignments, id)
	return nil
}

func (s *Store) TargetsByLine(_ context.Context, lineID uuid.UUID) ([]domain.NotificationTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.NotificationTarget
	for _, a := range s.assignments {
		if a.MaterialLineID != lineID {
			continue
		}
		p, ok := s.profiles[a.ProfileID]
		if !ok {
			continue
		}
		out = append(out, domain.NotificationTarget{
			ProfileID:    p.ID,
			Name:         p.FullName,
			Email:        p.Email,
			Phone:        p.Phone,
			SMSEnabled:   a.SMSEnabled,
			EmailEnabled: a.EmailEnabled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
