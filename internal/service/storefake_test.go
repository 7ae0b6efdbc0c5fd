package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// fakeStore is an in-memory store.Store and store.TxRunner. Atomic runs
// under a mutex (the serialization equivalent of the real serializable
// transaction) and restores a snapshot when fn fails, mirroring rollback.
type fakeStore struct {
	mu sync.Mutex

	users      map[string]*model.User
	events     map[string]*model.Event
	tags       map[string]*model.Tag
	attendance map[string]*model.AttendanceRecord
	waitlist   []model.WaitlistEntry
	ledger     map[string]*model.LedgerEntry

	rolePerms map[string][]string // role id → slugs
	userPerms map[string][]string // user id → slugs
	roleTags  map[string][]string // role id → tag ids
	userTags  map[string][]string // user id → tag ids

	// Error injection.
	failInsertLedger error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[string]*model.User{},
		events:     map[string]*model.Event{},
		tags:       map[string]*model.Tag{},
		attendance: map[string]*model.AttendanceRecord{},
		ledger:     map[string]*model.LedgerEntry{},
		rolePerms:  map[string][]string{},
		userPerms:  map[string][]string{},
		roleTags:   map[string][]string{},
		userTags:   map[string][]string{},
	}
}

var (
	_ store.Store    = (*fakeStore)(nil)
	_ store.TxRunner = (*fakeStore)(nil)
)

// ─── Snapshot / rollback ──────────────────────────────────────────────────────

type fakeSnapshot struct {
	users      map[string]*model.User
	events     map[string]*model.Event
	tags       map[string]*model.Tag
	attendance map[string]*model.AttendanceRecord
	waitlist   []model.WaitlistEntry
	ledger     map[string]*model.LedgerEntry
	userPerms  map[string][]string
	userTags   map[string][]string
}

func copyMap[V any](src map[string]*V) map[string]*V {
	dst := make(map[string]*V, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

func copySliceMap(src map[string][]string) map[string][]string {
	dst := make(map[string][]string, len(src))
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
	return dst
}

func (f *fakeStore) snapshot() fakeSnapshot {
	return fakeSnapshot{
		users:      copyMap(f.users),
		events:     copyMap(f.events),
		tags:       copyMap(f.tags),
		attendance: copyMap(f.attendance),
		waitlist:   append([]model.WaitlistEntry(nil), f.waitlist...),
		ledger:     copyMap(f.ledger),
		userPerms:  copySliceMap(f.userPerms),
		userTags:   copySliceMap(f.userTags),
	}
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.users = s.users
	f.events = s.events
	f.tags = s.tags
	f.attendance = s.attendance
	f.waitlist = s.waitlist
	f.ledger = s.ledger
	f.userPerms = s.userPerms
	f.userTags = s.userTags
}

// Atomic serializes transitions and rolls back on error.
func (f *fakeStore) Atomic(ctx context.Context, fn func(store.Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (f *fakeStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) AdjustFreeSessions(ctx context.Context, userID string, delta int) error {
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.FreeSessions += delta
	return nil
}

func (f *fakeStore) SetUserRole(ctx context.Context, userID string, roleID *string) error {
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.RoleID = roleID
	return nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (f *fakeStore) EventByID(ctx context.Context, id string) (*model.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (f *fakeStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return f.EventByID(ctx, id)
}

func (f *fakeStore) EventsBetween(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	var out []model.Event
	for _, e := range f.events {
		if e.EndsAt.Before(from) || e.StartsAt.After(to) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, e *model.Event) error {
	c := *e
	f.events[e.ID] = &c
	return nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, e *model.Event) error {
	if _, ok := f.events[e.ID]; !ok {
		return store.ErrNotFound
	}
	c := *e
	f.events[e.ID] = &c
	return nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

// ─── Tags ─────────────────────────────────────────────────────────────────────

func (f *fakeStore) TagByID(ctx context.Context, id string) (*model.Tag, error) {
	t, ok := f.tags[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeStore) CreateTag(ctx context.Context, t *model.Tag) error {
	c := *t
	f.tags[t.ID] = &c
	return nil
}

func (f *fakeStore) UpdateTag(ctx context.Context, t *model.Tag) error {
	if _, ok := f.tags[t.ID]; !ok {
		return store.ErrNotFound
	}
	c := *t
	f.tags[t.ID] = &c
	return nil
}

func (f *fakeStore) DeleteTag(ctx context.Context, id string) error {
	if _, ok := f.tags[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.tags, id)
	return nil
}

// ─── Attendance ───────────────────────────────────────────────────────────────

func (f *fakeStore) ActiveAttendance(ctx context.Context, eventID, userID string) (*model.AttendanceRecord, error) {
	for _, rec := range f.attendance {
		if rec.EventID == eventID && rec.UserID == userID && rec.IsAttending {
			c := *rec
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ActiveAttendeeCount(ctx context.Context, eventID string) (int, error) {
	n := 0
	for _, rec := range f.attendance {
		if rec.EventID == eventID && rec.IsAttending {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ActiveCoachCount(ctx context.Context, eventID string) (int, error) {
	n := 0
	for _, rec := range f.attendance {
		if rec.EventID == eventID && rec.IsAttending {
			if u, ok := f.users[rec.UserID]; ok && u.IsCoach {
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeStore) sortedRecords(eventID string, activeOnly bool) []model.AttendanceRecord {
	var out []model.AttendanceRecord
	for _, rec := range f.attendance {
		if rec.EventID != eventID {
			continue
		}
		if activeOnly && !rec.IsAttending {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (f *fakeStore) ActiveAttendees(ctx context.Context, eventID string) ([]model.AttendanceRecord, error) {
	return f.sortedRecords(eventID, true), nil
}

func (f *fakeStore) AttendanceHistory(ctx context.Context, eventID string) ([]model.AttendanceRecord, error) {
	return f.sortedRecords(eventID, false), nil
}

func (f *fakeStore) InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	c := *rec
	f.attendance[rec.ID] = &c
	return nil
}

func (f *fakeStore) CloseAttendance(ctx context.Context, recordID string, leftAt time.Time) error {
	rec, ok := f.attendance[recordID]
	if !ok || !rec.IsAttending {
		return store.ErrNotFound
	}
	rec.IsAttending = false
	t := leftAt
	rec.LeftAt = &t
	return nil
}

func (f *fakeStore) ClearAttendancePayment(ctx context.Context, recordID string) error {
	rec, ok := f.attendance[recordID]
	if !ok {
		return store.ErrNotFound
	}
	rec.PaymentEntryID = nil
	return nil
}

// ─── Waitlist ─────────────────────────────────────────────────────────────────

func (f *fakeStore) Waitlist(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	var out []model.WaitlistEntry
	for _, e := range f.waitlist {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f *fakeStore) OnWaitlist(ctx context.Context, eventID, userID string) (bool, error) {
	for _, e := range f.waitlist {
		if e.EventID == eventID && e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	f.waitlist = append(f.waitlist, *e)
	return nil
}

func (f *fakeStore) DeleteWaitlistEntry(ctx context.Context, eventID, userID string) error {
	for i, e := range f.waitlist {
		if e.EventID == eventID && e.UserID == userID {
			f.waitlist = append(f.waitlist[:i], f.waitlist[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// ─── Ledger ───────────────────────────────────────────────────────────────────

func (f *fakeStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	if f.failInsertLedger != nil {
		return f.failInsertLedger
	}
	c := *e
	f.ledger[e.ID] = &c
	return nil
}

func (f *fakeStore) DeleteLedgerEntry(ctx context.Context, id string) error {
	if _, ok := f.ledger[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.ledger, id)
	// Mirror the ON DELETE SET NULL foreign key.
	for _, rec := range f.attendance {
		if rec.PaymentEntryID != nil && *rec.PaymentEntryID == id {
			rec.PaymentEntryID = nil
		}
	}
	return nil
}

func (f *fakeStore) LedgerEntries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	for _, e := range f.ledger {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range f.ledger {
		if e.UserID == userID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (f *fakeStore) HasEventPayment(ctx context.Context, eventID, userID string) (bool, error) {
	for _, e := range f.ledger {
		if e.EventID != nil && *e.EventID == eventID && e.UserID == userID && e.Amount.IsNegative() {
			return true, nil
		}
	}
	return false, nil
}

// ─── RBAC ─────────────────────────────────────────────────────────────────────

func (f *fakeStore) PermissionSlugs(ctx context.Context, userID string) ([]string, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	var out []string
	if u.RoleID != nil {
		out = append(out, f.rolePerms[*u.RoleID]...)
	}
	out = append(out, f.userPerms[userID]...)
	return out, nil
}

func (f *fakeStore) ManagedTagIDs(ctx context.Context, userID string) ([]string, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	var out []string
	if u.RoleID != nil {
		out = append(out, f.roleTags[*u.RoleID]...)
	}
	out = append(out, f.userTags[userID]...)
	return out, nil
}

func (f *fakeStore) RoleManagedTagIDs(ctx context.Context, userID string) ([]string, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.RoleID == nil {
		return nil, nil
	}
	return append([]string(nil), f.roleTags[*u.RoleID]...), nil
}

func (f *fakeStore) GrantPermission(ctx context.Context, userID, slug string) error {
	f.userPerms[userID] = append(f.userPerms[userID], slug)
	return nil
}

func (f *fakeStore) RevokePermission(ctx context.Context, userID, slug string) error {
	out := f.userPerms[userID][:0]
	for _, s := range f.userPerms[userID] {
		if s != slug {
			out = append(out, s)
		}
	}
	f.userPerms[userID] = out
	return nil
}

func (f *fakeStore) GrantManagedTag(ctx context.Context, userID, tagID string) error {
	f.userTags[userID] = append(f.userTags[userID], tagID)
	return nil
}

func (f *fakeStore) RevokeManagedTag(ctx context.Context, userID, tagID string) error {
	out := f.userTags[userID][:0]
	for _, id := range f.userTags[userID] {
		if id != tagID {
			out = append(out, id)
		}
	}
	f.userTags[userID] = out
	return nil
}
