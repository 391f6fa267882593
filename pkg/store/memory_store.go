package store

import (
	"sort"
	"strings"
	"sync"

	"pillid/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User // key: user ID
	email    map[string]string      // email -> user ID
	profiles map[string]domain.UserProfile
	meds     map[string]domain.Medication
	medOrder []string
	scans    []domain.ScanHistoryEntry
	saved    map[string]domain.SavedMedication
	order    []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		profiles: make(map[string]domain.UserProfile),
		meds:     make(map[string]domain.Medication),
		saved:    make(map[string]domain.SavedMedication),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SaveProfile(p domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *MemoryStore) GetProfileByUser(userID string) (domain.UserProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

func (m *MemoryStore) CreateMedication(med domain.Medication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.meds[med.ID]; !exists {
		m.medOrder = append(m.medOrder, med.ID)
	}
	m.meds[med.ID] = med
	return nil
}

func (m *MemoryStore) UpdateMedication(med domain.Medication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.meds[med.ID]
	if !ok {
		return ErrNotFound
	}
	med.UserID = prev.UserID
	med.CreatedAt = prev.CreatedAt
	m.meds[med.ID] = med
	return nil
}

func (m *MemoryStore) GetMedication(id string) (domain.Medication, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	med, ok := m.meds[id]
	return med, ok, nil
}

// SearchMedications returns matches newest first.
func (m *MemoryStore) SearchMedications(f domain.MedicationFilter, limit int) ([]domain.Medication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = normalizeLimit(limit)
	res := make([]domain.Medication, 0)
	for i := len(m.medOrder) - 1; i >= 0 && len(res) < limit; i-- {
		med, ok := m.meds[m.medOrder[i]]
		if !ok || !matchMedication(med, f) {
			continue
		}
		res = append(res, med)
	}
	return res, nil
}

func matchMedication(med domain.Medication, f domain.MedicationFilter) bool {
	contains := func(field, want string) bool {
		want = strings.TrimSpace(want)
		return want == "" || strings.Contains(strings.ToLower(field), strings.ToLower(want))
	}
	equals := func(field, want string) bool {
		want = strings.TrimSpace(want)
		return want == "" || field == want
	}
	return contains(med.Name, f.Name) &&
		contains(med.Imprint, f.Imprint) &&
		equals(med.NDC, f.NDC) &&
		equals(med.GTIN, f.GTIN) &&
		equals(med.Shape, f.Shape) &&
		equals(med.Color, f.Color)
}

func (m *MemoryStore) DeleteMedication(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meds, id)
	for sid, s := range m.saved {
		if s.MedicationID == id {
			delete(m.saved, sid)
		}
	}
	return nil
}

func (m *MemoryStore) RecordScan(e domain.ScanHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Medication = nil
	m.scans = append(m.scans, e)
	return nil
}

// ListScansByUser returns newest first; equal timestamps keep the most
// recently recorded scan first.
func (m *MemoryStore) ListScansByUser(userID string, limit int) ([]domain.ScanHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ScanHistoryEntry, 0)
	for i := len(m.scans) - 1; i >= 0; i-- {
		if m.scans[i].UserID == userID {
			res = append(res, m.scans[i])
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if limit = normalizeLimit(limit); len(res) > limit {
		res = res[:limit]
	}
	for i := range res {
		if med, ok := m.meds[res[i].MedicationID]; ok {
			res[i].Medication = &med
		}
	}
	return res, nil
}

func (m *MemoryStore) SaveMedication(s domain.SavedMedication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.saved[s.ID]; !exists {
		m.order = append(m.order, s.ID)
	}
	s.Medication = nil
	m.saved[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSaved(id string) (domain.SavedMedication, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.saved[id]
	return s, ok, nil
}

func (m *MemoryStore) ListSavedByUser(userID string) ([]domain.SavedMedication, error) {
	return m.listSaved(func(s domain.SavedMedication) bool { return s.UserID == userID }), nil
}

func (m *MemoryStore) ListReminders() ([]domain.SavedMedication, error) {
	return m.listSaved(func(s domain.SavedMedication) bool { return s.ReminderEnabled }), nil
}

func (m *MemoryStore) listSaved(keep func(domain.SavedMedication) bool) []domain.SavedMedication {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SavedMedication, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		s, ok := m.saved[m.order[i]]
		if !ok || !keep(s) {
			continue
		}
		if med, ok := m.meds[s.MedicationID]; ok {
			s.Medication = &med
		}
		res = append(res, s)
	}
	return res
}

func (m *MemoryStore) RemoveSaved(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}
