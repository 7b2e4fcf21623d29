package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"checkin/internal/visit/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/sentinel"
)

// Memory is an in-process store. Transactions read copies, buffer their
// writes, and validate at commit that nothing they read or wrote changed in
// between. A failed validation returns sentinel.ErrConflict and nothing is
// applied.
type Memory struct {
	mu            sync.RWMutex
	attendees     map[id.AttendeeID]*models.Attendee
	organizations map[id.OrganizationID]*models.Organization
	visits        map[string]*models.VisitRecord
	byAttendee    map[id.AttendeeID][]string
	commits       int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		attendees:     make(map[id.AttendeeID]*models.Attendee),
		organizations: make(map[id.OrganizationID]*models.Organization),
		visits:        make(map[string]*models.VisitRecord),
		byAttendee:    make(map[id.AttendeeID][]string),
	}
}

// RunInTx runs fn against a fresh snapshot and commits its writes atomically.
func (m *Memory) RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	ctx, cancel := withTxDeadline(ctx, opts)
	defer cancel()

	tx := &memoryTx{
		store:         m,
		attendeeReads: make(map[id.AttendeeID]int64),
		orgReads:      make(map[id.OrganizationID]int64),
		attendees:     make(map[id.AttendeeID]*models.Attendee),
		organizations: make(map[id.OrganizationID]*models.Organization),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	return m.commit(tx)
}

// Commits reports how many write transactions have committed.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

func (m *Memory) commit(tx *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attendeeID, v := range tx.attendeeReads {
		if m.attendeeVersion(attendeeID) != v {
			return fmt.Errorf("attendee %s changed: %w", attendeeID, sentinel.ErrConflict)
		}
	}
	for orgID, v := range tx.orgReads {
		if m.orgVersion(orgID) != v {
			return fmt.Errorf("organization %s changed: %w", orgID, sentinel.ErrConflict)
		}
	}
	for _, rec := range tx.visits {
		if _, exists := m.visits[rec.ID]; exists {
			return fmt.Errorf("visit %s already recorded: %w", rec.ID, sentinel.ErrConflict)
		}
	}

	if len(tx.attendees)+len(tx.organizations)+len(tx.visits) == 0 {
		return nil
	}
	for attendeeID, a := range tx.attendees {
		a.Version = tx.attendeeReads[attendeeID] + 1
		m.attendees[attendeeID] = a
	}
	for orgID, o := range tx.organizations {
		o.Version = tx.orgReads[orgID] + 1
		m.organizations[orgID] = o
	}
	for _, rec := range tx.visits {
		m.visits[rec.ID] = rec
		m.byAttendee[rec.AttendeeID] = append(m.byAttendee[rec.AttendeeID], rec.ID)
	}
	m.commits++
	return nil
}

// attendeeVersion is -1 for a missing attendee so "absent" is also a
// version that commit can validate. Caller holds m.mu.
func (m *Memory) attendeeVersion(attendeeID id.AttendeeID) int64 {
	if a, ok := m.attendees[attendeeID]; ok {
		return a.Version
	}
	return -1
}

func (m *Memory) orgVersion(orgID id.OrganizationID) int64 {
	if o, ok := m.organizations[orgID]; ok {
		return o.Version
	}
	return -1
}

type memoryTx struct {
	store *Memory

	attendeeReads map[id.AttendeeID]int64
	orgReads      map[id.OrganizationID]int64

	attendees     map[id.AttendeeID]*models.Attendee
	organizations map[id.OrganizationID]*models.Organization
	visits        []*models.VisitRecord
}

func (t *memoryTx) FindAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := t.attendee(attendeeID)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (t *memoryTx) UpdateAttendee(ctx context.Context, attendeeID id.AttendeeID, patch models.AttendeeVisitPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := t.attendee(attendeeID)
	if err != nil {
		return err
	}
	if !a.HasVisited(patch.AddOrganization) {
		a.VisitedOrganizations = append(a.VisitedOrganizations, patch.AddOrganization)
	}
	a.VisitCount = patch.VisitCount
	visitedAt := patch.LastVisitTime
	a.LastVisitTime = &visitedAt
	return nil
}

func (t *memoryTx) UpdateOrganization(ctx context.Context, orgID id.OrganizationID, patch models.OrganizationVisitPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o, err := t.organization(orgID)
	if err != nil {
		return err
	}
	if !slices.Contains(o.VisitorIDs, patch.AddVisitor) {
		o.VisitorIDs = append(o.VisitorIDs, patch.AddVisitor)
		o.VisitorCount++
	}
	return nil
}

func (t *memoryTx) InsertVisitRecord(ctx context.Context, record *models.VisitRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rec := range t.visits {
		if rec.ID == record.ID {
			return fmt.Errorf("visit %s: %w", record.ID, sentinel.ErrAlreadyExists)
		}
	}
	rec := *record
	t.visits = append(t.visits, &rec)
	return nil
}

// attendee returns the transaction's working copy, reading it from the
// committed state on first use.
func (t *memoryTx) attendee(attendeeID id.AttendeeID) (*models.Attendee, error) {
	if a, ok := t.attendees[attendeeID]; ok {
		return a, nil
	}

	t.store.mu.RLock()
	committed, ok := t.store.attendees[attendeeID]
	version := t.store.attendeeVersion(attendeeID)
	var working *models.Attendee
	if ok {
		working = committed.Clone()
	}
	t.store.mu.RUnlock()

	if prev, seen := t.attendeeReads[attendeeID]; !seen {
		t.attendeeReads[attendeeID] = version
	} else if prev != version {
		return nil, fmt.Errorf("attendee %s changed: %w", attendeeID, sentinel.ErrConflict)
	}
	if !ok {
		return nil, fmt.Errorf("attendee %s: %w", attendeeID, sentinel.ErrNotFound)
	}
	t.attendees[attendeeID] = working
	return working, nil
}

func (t *memoryTx) organization(orgID id.OrganizationID) (*models.Organization, error) {
	if o, ok := t.organizations[orgID]; ok {
		return o, nil
	}

	t.store.mu.RLock()
	committed, ok := t.store.organizations[orgID]
	version := t.store.orgVersion(orgID)
	var working *models.Organization
	if ok {
		working = committed.Clone()
	}
	t.store.mu.RUnlock()

	if prev, seen := t.orgReads[orgID]; !seen {
		t.orgReads[orgID] = version
	} else if prev != version {
		return nil, fmt.Errorf("organization %s changed: %w", orgID, sentinel.ErrConflict)
	}
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, sentinel.ErrNotFound)
	}
	t.organizations[orgID] = working
	return working, nil
}

// CreateAttendee inserts a new attendee with no visits.
func (m *Memory) CreateAttendee(_ context.Context, a *models.Attendee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attendees[a.ID]; exists {
		return fmt.Errorf("attendee %s: %w", a.ID, sentinel.ErrAlreadyExists)
	}
	c := a.Clone()
	c.Version = 0
	m.attendees[a.ID] = c
	return nil
}

// CreateOrganization inserts a new organization with no visitors.
func (m *Memory) CreateOrganization(_ context.Context, o *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.organizations[o.ID]; exists {
		return fmt.Errorf("organization %s: %w", o.ID, sentinel.ErrAlreadyExists)
	}
	c := o.Clone()
	c.Version = 0
	m.organizations[o.ID] = c
	return nil
}

// GetAttendee returns a committed attendee.
func (m *Memory) GetAttendee(_ context.Context, attendeeID id.AttendeeID) (*models.Attendee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attendees[attendeeID]
	if !ok {
		return nil, fmt.Errorf("attendee %s: %w", attendeeID, sentinel.ErrNotFound)
	}
	return a.Clone(), nil
}

// GetOrganization returns a committed organization.
func (m *Memory) GetOrganization(_ context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.organizations[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, sentinel.ErrNotFound)
	}
	return o.Clone(), nil
}

// ListVisits returns the attendee's visit log in commit order.
func (m *Memory) ListVisits(_ context.Context, attendeeID id.AttendeeID) ([]*models.VisitRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byAttendee[attendeeID]
	out := make([]*models.VisitRecord, 0, len(ids))
	for _, visitID := range ids {
		rec := *m.visits[visitID]
		out = append(out, &rec)
	}
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }
