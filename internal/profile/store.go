package profile

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/types"
)

// Persister saves profile documents. The store keeps working in memory when
// persistence fails; errors are logged.
type Persister interface {
	SaveProfile(id int, doc []byte) error
	DeleteProfile(id int) error
	LoadProfiles() (map[int][]byte, error)
	SaveActiveProfile(id int) error
	LoadActiveProfile() (int, error)
}

// Store holds up to MaxProfiles profiles and the active selection. Profiles
// are returned by value; callers never share memory with the store.
//
// Mutators encode changes under mu and write them to the persister after
// releasing it, so readers on the frame path never wait on redis.
type Store struct {
	mu      sync.RWMutex
	slots   [MaxProfiles]*Profile
	active  int
	persist Persister
	logger  *logger.Logger
	now     func() time.Time

	// Pending writes, guarded by mu. A nil document deletes the slot.
	dirty       map[int][]byte
	activeDirty bool
	persistMu   sync.Mutex
}

// NewStore returns an empty store. persist may be nil.
func NewStore(persist Persister, l *logger.Logger) *Store {
	return &Store{
		active:  NoProfile,
		persist: persist,
		logger:  l,
		now:     time.Now,
	}
}

func (s *Store) get(id int) *Profile {
	if id < 0 || id >= MaxProfiles {
		return nil
	}
	return s.slots[id]
}

func (s *Store) freeSlot() int {
	for i, p := range s.slots {
		if p == nil {
			return i
		}
	}
	return NoProfile
}

// save queues p for persistence. Caller holds mu.
func (s *Store) save(p *Profile) {
	if s.persist == nil {
		return
	}
	doc, err := Marshal(p)
	if err != nil {
		s.logger.Errorf("Failed to encode profile %d: %v", p.ID, err)
		return
	}
	s.queue(p.ID, doc)
}

// drop queues the removal of slot id. Caller holds mu.
func (s *Store) drop(id int) {
	if s.persist != nil {
		s.queue(id, nil)
	}
}

func (s *Store) queue(id int, doc []byte) {
	if s.dirty == nil {
		s.dirty = make(map[int][]byte)
	}
	s.dirty[id] = doc
}

func (s *Store) saveActive() {
	if s.persist != nil {
		s.activeDirty = true
	}
}

// flush writes the pending changes. It must be called without mu held.
// Flushes are serialized and each writes the newest queued state, so
// concurrent mutators cannot leave an older document in redis.
func (s *Store) flush() {
	if s.persist == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	dirty, writeActive, active := s.dirty, s.activeDirty, s.active
	s.dirty, s.activeDirty = nil, false
	s.mu.Unlock()

	ids := make([]int, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if doc := dirty[id]; doc == nil {
			if err := s.persist.DeleteProfile(id); err != nil {
				s.logger.Warnf("Failed to delete persisted profile %d: %v", id, err)
			}
		} else if err := s.persist.SaveProfile(id, doc); err != nil {
			s.logger.Warnf("Failed to persist profile %d: %v", id, err)
		}
	}
	if writeActive {
		if err := s.persist.SaveActiveProfile(active); err != nil {
			s.logger.Warnf("Failed to persist active profile: %v", err)
		}
	}
}

func (s *Store) setActive(id int) {
	if cur := s.get(s.active); cur != nil {
		cur.Active = false
	}
	s.active = id
	if p := s.get(id); p != nil {
		p.Active = true
	}
	s.saveActive()
}

// CanCreate reports whether a free slot exists.
func (s *Store) CanCreate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freeSlot() != NoProfile
}

// Create adds a profile named name. A nil template yields the factory
// default bindings.
func (s *Store) Create(name string, template *Profile) (int, error) {
	name, err := validName(name)
	if err != nil {
		return NoProfile, err
	}

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.freeSlot()
	if id == NoProfile {
		return NoProfile, ErrNoSlot
	}

	var p Profile
	if template != nil {
		p = *template
	} else {
		p = NewDefault(name)
	}
	now := s.now()
	p.ID, p.Name, p.Active = id, name, false
	p.Created, p.Modified = now, now
	s.slots[id] = &p
	s.save(&p)

	s.logger.Infof("Created profile %d %q", id, name)
	return id, nil
}

// Save replaces the stored profile with p, keeping its creation time and
// active flag.
func (s *Store) Save(p Profile) error {
	name, err := validName(p.Name)
	if err != nil {
		return err
	}

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.get(p.ID)
	if cur == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, p.ID)
	}
	p.Name = name
	p.Created, p.Active = cur.Created, cur.Active
	p.Modified = s.now()
	*cur = p
	s.save(cur)
	return nil
}

func (s *Store) Get(id int) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.get(id)
	if p == nil {
		return Profile{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return *p, nil
}

// List returns every profile ordered by id.
func (s *Store) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Profile, 0, MaxProfiles)
	for _, p := range s.slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a profile. Deleting the active profile activates the
// lowest remaining id, or none.
func (s *Store) Delete(id int) error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.get(id) == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	for i, p := range s.slots {
		if p != nil && i != id && p.Targets(id) {
			return fmt.Errorf("%w: %d is used by %d", ErrInUse, id, i)
		}
	}

	s.slots[id] = nil
	s.drop(id)

	if s.active == id {
		next := NoProfile
		for i, p := range s.slots {
			if p != nil {
				next = i
				break
			}
		}
		s.active = NoProfile
		s.setActive(next)
	}
	s.logger.Infof("Deleted profile %d", id)
	return nil
}

func (s *Store) Rename(id int, name string) error {
	name, err := validName(name)
	if err != nil {
		return err
	}
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(id)
	if p == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	p.Name = name
	p.Modified = s.now()
	s.save(p)
	return nil
}

// Activate selects id. An unknown id leaves the selection unchanged.
func (s *Store) Activate(id int) error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.get(id) == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if s.active != id {
		s.setActive(id)
		s.logger.Infof("Activated profile %d %q", id, s.slots[id].Name)
	}
	return nil
}

func (s *Store) Active() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.get(s.active)
	if p == nil {
		return Profile{}, false
	}
	return *p, true
}

func (s *Store) ActiveID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Cycle activates the next existing profile in direction (>= 0 forward,
// < 0 backward), wrapping around. It returns the new active id.
func (s *Store) Cycle(direction int) (int, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	step := 1
	if direction < 0 {
		step = MaxProfiles - 1
	}
	start := s.active
	if start < 0 {
		// Forward starts at slot 0, backward at the last slot.
		start = 0
		if step == 1 {
			start = MaxProfiles - 1
		}
	}
	for i := 1; i <= MaxProfiles; i++ {
		id := (start + i*step) % MaxProfiles
		if s.slots[id] != nil {
			if id != s.active {
				s.setActive(id)
			}
			return id, nil
		}
	}
	return NoProfile, ErrNotFound
}

// SetBinding replaces the binding for ev.
func (s *Store) SetBinding(id int, ev types.SemanticEvent, b Binding) error {
	if !ev.Valid() {
		return fmt.Errorf("%w: event %s", ErrInvalidBinding, ev)
	}
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.get(id)
	if p == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if b.Action == SwitchProfile {
		if !ev.CanSwitchProfile() || b.TargetProfile == id || s.get(b.TargetProfile) == nil {
			return fmt.Errorf("%w: %s cannot switch to %d", ErrInvalidBinding, ev, b.TargetProfile)
		}
	} else {
		b.TargetProfile = NoProfile
	}
	p.Bindings[ev] = b
	p.Modified = s.now()
	s.save(p)
	return nil
}

func (s *Store) SetEnabled(id int, ev types.SemanticEvent, enabled bool) error {
	if !ev.Valid() {
		return fmt.Errorf("%w: event %s", ErrInvalidBinding, ev)
	}
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(id)
	if p == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	p.Bindings[ev].Enabled = enabled
	p.Modified = s.now()
	s.save(p)
	return nil
}

// SetDynamicBrightness configures brightness following the vehicle display.
// rate is clamped to 100.
func (s *Store) SetDynamicBrightness(id int, enabled bool, rate uint8) error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(id)
	if p == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	p.DynamicBrightness = enabled
	p.BrightnessRate = min(rate, 100)
	p.Modified = s.now()
	s.save(p)
	return nil
}

// FactoryReset removes every profile and recreates Default and Off with
// Default active.
func (s *Store) FactoryReset() error {
	defer s.flush()
	s.mu.Lock()
	for i, p := range s.slots {
		if p == nil {
			continue
		}
		s.slots[i] = nil
		s.drop(i)
	}
	s.active = NoProfile
	s.mu.Unlock()

	off := NewOff("Off")
	id, err := s.Create("Default", nil)
	if err != nil {
		return fmt.Errorf("failed to create default profile: %w", err)
	}
	if _, err := s.Create(off.Name, &off); err != nil {
		return fmt.Errorf("failed to create off profile: %w", err)
	}
	return s.Activate(id)
}

// Export encodes profile id as a document.
func (s *Store) Export(id int) ([]byte, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return Marshal(&p)
}

// Import decodes doc into slot id, replacing any profile there. The slot
// keeps its active flag.
func (s *Store) Import(id int, doc []byte) error {
	p, err := Unmarshal(doc)
	if err != nil {
		return err
	}
	if id < 0 || id >= MaxProfiles {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p.ID = id
	p.Modified = now
	if cur := s.slots[id]; cur != nil {
		p.Active = cur.Active
		if p.Created.IsZero() {
			p.Created = cur.Created
		}
	}
	if p.Created.IsZero() {
		p.Created = now
	}
	s.slots[id] = &p
	s.save(&p)
	return nil
}

// ImportNew decodes doc into a free slot and returns its id.
func (s *Store) ImportNew(doc []byte) (int, error) {
	p, err := Unmarshal(doc)
	if err != nil {
		return NoProfile, err
	}
	return s.Create(p.Name, &p)
}

// LoadPersisted restores profiles from the persister. An empty store is
// factory reset.
func (s *Store) LoadPersisted() error {
	if s.persist == nil {
		return s.FactoryReset()
	}
	docs, err := s.persist.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	s.mu.Lock()
	loaded := 0
	for id, doc := range docs {
		if id < 0 || id >= MaxProfiles {
			s.logger.Warnf("Ignoring persisted profile with id %d", id)
			continue
		}
		p, err := Unmarshal(doc)
		if err != nil {
			s.logger.Warnf("Ignoring persisted profile %d: %v", id, err)
			continue
		}
		p.ID = id
		s.slots[id] = &p
		loaded++
	}
	s.mu.Unlock()

	if loaded == 0 {
		s.logger.Infof("No stored profiles, creating defaults")
		return s.FactoryReset()
	}

	active, err := s.persist.LoadActiveProfile()
	if err != nil || s.Activate(active) != nil {
		if _, err := s.Cycle(1); err != nil {
			return err
		}
	}
	s.logger.Infof("Loaded %d profiles, active %d", loaded, s.ActiveID())
	return nil
}
