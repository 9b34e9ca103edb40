package fakesessionrepo

import (
	"sync"

	"github.com/HARD953/distribut-sub001/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps the slots in memory. The user slot is stored as JSON
// so that callers never share a mutable SessionUser with the repo.
type FakeSessionRepo struct {
	slots map[sessions.Slot]string
	lock  sync.RWMutex

	writes int // Number of mutating calls
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		slots: make(map[sessions.Slot]string),
	}
}

func (sr *FakeSessionRepo) Load() (*sessions.Record, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	rec := &sessions.Record{
		Access:  sr.slots[sessions.SlotAccess],
		Refresh: sr.slots[sessions.SlotRefresh],
	}
	rec.User = sessions.DecodeUser(sr.slots[sessions.SlotUser])
	return rec, nil
}

func (sr *FakeSessionRepo) Save(rec *sessions.Record) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.writes++
	sr.slots = make(map[sessions.Slot]string)
	if rec == nil {
		return nil
	}
	if rec.Access != "" {
		sr.slots[sessions.SlotAccess] = rec.Access
	}
	if rec.Refresh != "" {
		sr.slots[sessions.SlotRefresh] = rec.Refresh
	}
	user, err := sessions.EncodeUser(rec.User)
	if err != nil {
		return err
	}
	if user != "" {
		sr.slots[sessions.SlotUser] = user
	}
	return nil
}

func (sr *FakeSessionRepo) SaveAccess(access string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.writes++
	if access == "" {
		delete(sr.slots, sessions.SlotAccess)
		return nil
	}
	sr.slots[sessions.SlotAccess] = access
	return nil
}

func (sr *FakeSessionRepo) Clear() error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.writes++
	sr.slots = make(map[sessions.Slot]string)
	return nil
}

// Set writes a raw slot value, used by tests to build partial or corrupt records.
func (sr *FakeSessionRepo) Set(slot sessions.Slot, value string) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.slots[slot] = value
}

// Slots returns a snapshot of the raw slot values.
func (sr *FakeSessionRepo) Slots() map[sessions.Slot]string {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	out := make(map[sessions.Slot]string, len(sr.slots))
	for k, v := range sr.slots {
		out[k] = v
	}
	return out
}

// Writes returns the number of mutating calls made so far.
func (sr *FakeSessionRepo) Writes() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.writes
}
