// Package memory provides an in-memory classroom.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/classpoints/classroom"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements classroom.Store with plain maps. WithTx clones the whole
// dataset before running the unit and swaps it back in only on success, so a
// failed unit leaves state untouched - the same all-or-nothing contract the
// SQLite store gets from database transactions.
type Memory struct {
	mu   sync.RWMutex
	data *dataset
}

func New() *Memory {
	return &Memory{data: newDataset()}
}

var _ classroom.Store = (*Memory)(nil)

type dataset struct {
	students    map[string]classroom.Student
	groups      map[string]classroom.Group
	tags        map[string]classroom.Tag
	studentTags map[string]map[string]bool // studentID -> tagID set
	rules       map[string]classroom.PointRule
	records     []classroom.PointRecord
	items       map[string]classroom.StoreItem
	redemptions map[string]classroom.Redemption
	calls       []classroom.CallRecord
}

func newDataset() *dataset {
	return &dataset{
		students:    make(map[string]classroom.Student),
		groups:      make(map[string]classroom.Group),
		tags:        make(map[string]classroom.Tag),
		studentTags: make(map[string]map[string]bool),
		rules:       make(map[string]classroom.PointRule),
		items:       make(map[string]classroom.StoreItem),
		redemptions: make(map[string]classroom.Redemption),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.students {
		c.students[k] = v
	}
	for k, v := range d.groups {
		c.groups[k] = v
	}
	for k, v := range d.tags {
		c.tags[k] = v
	}
	for k, set := range d.studentTags {
		cs := make(map[string]bool, len(set))
		for t := range set {
			cs[t] = true
		}
		c.studentTags[k] = cs
	}
	for k, v := range d.rules {
		c.rules[k] = v
	}
	for k, v := range d.items {
		if v.Stock != nil {
			n := *v.Stock
			v.Stock = &n
		}
		c.items[k] = v
	}
	for k, v := range d.redemptions {
		c.redemptions[k] = v
	}
	c.records = append([]classroom.PointRecord(nil), d.records...)
	c.calls = append([]classroom.CallRecord(nil), d.calls...)
	return c
}

// WithTx runs fn against a clone and commits by pointer swap.
func (m *Memory) WithTx(_ context.Context, fn func(classroom.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(&txMemory{data: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

// txMemory operates on the working copy without locking; the enclosing
// WithTx holds the write lock.
type txMemory struct {
	data *dataset
}

var _ classroom.Store = (*txMemory)(nil)

func (t *txMemory) WithTx(_ context.Context, fn func(classroom.Store) error) error {
	return fn(t)
}

// =============================================================================
// STUDENTS
// =============================================================================

func (d *dataset) saveStudent(st classroom.Student) error {
	now := time.Now().UTC()
	if existing, ok := d.students[st.ID]; ok {
		if existing.OwnerID != st.OwnerID {
			return nil // foreign row: behave like the SQLite owner guard
		}
		st.CreatedAt = existing.CreatedAt
		st.Points = existing.Points
	} else if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	d.students[st.ID] = st
	return nil
}

func (d *dataset) getStudent(ownerID, studentID string) (classroom.Student, error) {
	st, ok := d.students[studentID]
	if !ok || st.OwnerID != ownerID {
		return classroom.Student{}, &classroom.NotFoundError{Entity: "student", ID: studentID}
	}
	return st, nil
}

func (d *dataset) listStudents(ownerID string, f classroom.StudentFilter) ([]classroom.Student, error) {
	var out []classroom.Student
	for _, st := range d.students {
		if st.OwnerID != ownerID {
			continue
		}
		if !f.IncludeArchived && st.IsArchived {
			continue
		}
		if f.GroupID != "" && st.GroupID != f.GroupID {
			continue
		}
		if f.TagID != "" && !d.studentTags[st.ID][f.TagID] {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (d *dataset) setStudentPoints(ownerID, studentID string, points int) error {
	st, err := d.getStudent(ownerID, studentID)
	if err != nil {
		return err
	}
	st.Points = points
	st.UpdatedAt = time.Now().UTC()
	d.students[studentID] = st
	return nil
}

func (d *dataset) setStudentsPoints(ownerID string, studentIDs []string, points int) error {
	for _, id := range studentIDs {
		if _, err := d.getStudent(ownerID, id); err != nil {
			return &classroom.ValidationError{Message: "one or more students not found"}
		}
	}
	for _, id := range studentIDs {
		st := d.students[id]
		st.Points = points
		st.UpdatedAt = time.Now().UTC()
		d.students[id] = st
	}
	return nil
}

func (d *dataset) archiveStudent(ownerID, studentID string) error {
	st, err := d.getStudent(ownerID, studentID)
	if err != nil {
		return err
	}
	st.IsArchived = true
	st.UpdatedAt = time.Now().UTC()
	d.students[studentID] = st
	return nil
}

// =============================================================================
// GROUPS, TAGS, RULES
// =============================================================================

func (d *dataset) saveGroup(g classroom.Group) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	d.groups[g.ID] = g
	return nil
}

func (d *dataset) getGroup(ownerID, groupID string) (classroom.Group, error) {
	g, ok := d.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return classroom.Group{}, &classroom.NotFoundError{Entity: "group", ID: groupID}
	}
	return g, nil
}

func (d *dataset) saveTag(t classroom.Tag) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	d.tags[t.ID] = t
	return nil
}

func (d *dataset) getTag(ownerID, tagID string) (classroom.Tag, error) {
	t, ok := d.tags[tagID]
	if !ok || t.OwnerID != ownerID {
		return classroom.Tag{}, &classroom.NotFoundError{Entity: "tag", ID: tagID}
	}
	return t, nil
}

func (d *dataset) tagStudent(ownerID, studentID, tagID string) error {
	if _, err := d.getStudent(ownerID, studentID); err != nil {
		return err
	}
	if _, err := d.getTag(ownerID, tagID); err != nil {
		return err
	}
	set := d.studentTags[studentID]
	if set == nil {
		set = make(map[string]bool)
		d.studentTags[studentID] = set
	}
	set[tagID] = true
	return nil
}

func (d *dataset) saveRule(r classroom.PointRule) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	d.rules[r.ID] = r
	return nil
}

func (d *dataset) getRule(ownerID, ruleID string) (classroom.PointRule, error) {
	r, ok := d.rules[ruleID]
	if !ok || r.OwnerID != ownerID {
		return classroom.PointRule{}, &classroom.NotFoundError{Entity: "rule", ID: ruleID}
	}
	return r, nil
}

func (d *dataset) listRules(ownerID string) ([]classroom.PointRule, error) {
	var out []classroom.PointRule
	for _, r := range d.rules {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// POINT RECORDS
// =============================================================================

func (d *dataset) appendRecord(rec classroom.PointRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	d.records = append(d.records, rec)
	return nil
}

func (d *dataset) listRecords(ownerID string, f classroom.RecordFilter) ([]classroom.RecordView, int, error) {
	var matched []classroom.PointRecord
	for _, rec := range d.records {
		if rec.OwnerID != ownerID {
			continue
		}
		if f.StudentID != "" && rec.StudentID != f.StudentID {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		matched = append(matched, rec)
	}
	// newest first, like the SQLite listing
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	matched = pageSlice(matched, f.Page)

	views := make([]classroom.RecordView, 0, len(matched))
	for _, rec := range matched {
		v := classroom.RecordView{PointRecord: rec}
		if st, ok := d.students[rec.StudentID]; ok {
			v.StudentName = st.Name
			v.StudentNumber = st.Number
		}
		if rec.RuleID != "" {
			if r, ok := d.rules[rec.RuleID]; ok {
				v.RuleName = r.Name
			}
		}
		views = append(views, v)
	}
	return views, total, nil
}

func (d *dataset) recordsByStudent(ownerID, studentID string) ([]classroom.PointRecord, error) {
	var out []classroom.PointRecord
	for _, rec := range d.records {
		if rec.OwnerID == ownerID && rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// STORE ITEMS & REDEMPTIONS
// =============================================================================

func (d *dataset) saveItem(it classroom.StoreItem) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	if it.Stock != nil {
		n := *it.Stock
		it.Stock = &n
	}
	d.items[it.ID] = it
	return nil
}

func (d *dataset) getItem(ownerID, itemID string) (classroom.StoreItem, error) {
	it, ok := d.items[itemID]
	if !ok || it.OwnerID != ownerID {
		return classroom.StoreItem{}, &classroom.NotFoundError{Entity: "item", ID: itemID}
	}
	if it.Stock != nil {
		n := *it.Stock
		it.Stock = &n
	}
	return it, nil
}

func (d *dataset) listItems(ownerID string, activeOnly bool) ([]classroom.StoreItem, error) {
	var out []classroom.StoreItem
	for _, it := range d.items {
		if it.OwnerID != ownerID {
			continue
		}
		if activeOnly && !it.IsActive {
			continue
		}
		if it.Stock != nil {
			n := *it.Stock
			it.Stock = &n
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (d *dataset) setItemStock(ownerID, itemID string, stock int) error {
	it, err := d.getItem(ownerID, itemID)
	if err != nil {
		return err
	}
	if it.Stock == nil {
		return &classroom.NotFoundError{Entity: "item", ID: itemID}
	}
	*it.Stock = stock
	d.items[itemID] = it
	return nil
}

func (d *dataset) insertRedemption(r classroom.Redemption) error {
	d.redemptions[r.ID] = r
	return nil
}

func (d *dataset) getRedemption(ownerID, redemptionID string) (classroom.Redemption, error) {
	r, ok := d.redemptions[redemptionID]
	if !ok || r.OwnerID != ownerID {
		return classroom.Redemption{}, &classroom.NotFoundError{Entity: "redemption", ID: redemptionID}
	}
	return r, nil
}

func (d *dataset) updateRedemption(r classroom.Redemption) error {
	if _, err := d.getRedemption(r.OwnerID, r.ID); err != nil {
		return err
	}
	d.redemptions[r.ID] = r
	return nil
}

func (d *dataset) listRedemptions(ownerID string, f classroom.RedemptionFilter) ([]classroom.RedemptionView, int, error) {
	var matched []classroom.Redemption
	for _, r := range d.redemptions {
		if r.OwnerID != ownerID {
			continue
		}
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RedeemedAt.After(matched[j].RedeemedAt)
	})

	total := len(matched)
	matched = pageSlice(matched, f.Page)

	views := make([]classroom.RedemptionView, 0, len(matched))
	for _, r := range matched {
		v := classroom.RedemptionView{Redemption: r}
		if st, ok := d.students[r.StudentID]; ok {
			v.StudentName = st.Name
			v.StudentNumber = st.Number
		}
		if it, ok := d.items[r.ItemID]; ok {
			v.ItemName = it.Name
		}
		views = append(views, v)
	}
	return views, total, nil
}

// =============================================================================
// CALL HISTORY
// =============================================================================

func (d *dataset) appendCall(c classroom.CallRecord) error {
	if c.CalledAt.IsZero() {
		c.CalledAt = time.Now().UTC()
	}
	d.calls = append(d.calls, c)
	return nil
}

func (d *dataset) calledStudentIDs(ownerID string, since time.Time) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range d.calls {
		if c.OwnerID != ownerID || c.StudentID == nil {
			continue
		}
		if c.CalledAt.Before(since) {
			continue
		}
		if !seen[*c.StudentID] {
			seen[*c.StudentID] = true
			ids = append(ids, *c.StudentID)
		}
	}
	return ids, nil
}

func (d *dataset) listCalls(ownerID string, f classroom.CallFilter) ([]classroom.CallView, int, error) {
	var matched []classroom.CallRecord
	for _, c := range d.calls {
		if c.OwnerID != ownerID {
			continue
		}
		if !f.Since.IsZero() && c.CalledAt.Before(f.Since) {
			continue
		}
		matched = append(matched, c)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CalledAt.After(matched[j].CalledAt)
	})

	total := len(matched)
	matched = pageSlice(matched, f.Page)

	views := make([]classroom.CallView, 0, len(matched))
	for _, c := range matched {
		v := classroom.CallView{CallRecord: c}
		if c.StudentID != nil {
			if st, ok := d.students[*c.StudentID]; ok {
				v.StudentName = st.Name
			}
		}
		views = append(views, v)
	}
	return views, total, nil
}

// =============================================================================
// INTERFACE PLUMBING
// =============================================================================

func (m *Memory) SaveStudent(_ context.Context, st classroom.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveStudent(st)
}

func (m *Memory) GetStudent(_ context.Context, ownerID, studentID string) (classroom.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getStudent(ownerID, studentID)
}

func (m *Memory) ListStudents(_ context.Context, ownerID string, f classroom.StudentFilter) ([]classroom.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listStudents(ownerID, f)
}

func (m *Memory) SetStudentPoints(_ context.Context, ownerID, studentID string, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.setStudentPoints(ownerID, studentID, points)
}

func (m *Memory) SetStudentsPoints(_ context.Context, ownerID string, studentIDs []string, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.setStudentsPoints(ownerID, studentIDs, points)
}

func (m *Memory) ArchiveStudent(_ context.Context, ownerID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.archiveStudent(ownerID, studentID)
}

func (m *Memory) SaveGroup(_ context.Context, g classroom.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveGroup(g)
}

func (m *Memory) GetGroup(_ context.Context, ownerID, groupID string) (classroom.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getGroup(ownerID, groupID)
}

func (m *Memory) SaveTag(_ context.Context, t classroom.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveTag(t)
}

func (m *Memory) GetTag(_ context.Context, ownerID, tagID string) (classroom.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getTag(ownerID, tagID)
}

func (m *Memory) TagStudent(_ context.Context, ownerID, studentID, tagID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.tagStudent(ownerID, studentID, tagID)
}

func (m *Memory) SaveRule(_ context.Context, r classroom.PointRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveRule(r)
}

func (m *Memory) GetRule(_ context.Context, ownerID, ruleID string) (classroom.PointRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getRule(ownerID, ruleID)
}

func (m *Memory) ListRules(_ context.Context, ownerID string) ([]classroom.PointRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listRules(ownerID)
}

func (m *Memory) AppendRecord(_ context.Context, rec classroom.PointRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.appendRecord(rec)
}

func (m *Memory) ListRecords(_ context.Context, ownerID string, f classroom.RecordFilter) ([]classroom.RecordView, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listRecords(ownerID, f)
}

func (m *Memory) RecordsByStudent(_ context.Context, ownerID, studentID string) ([]classroom.PointRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.recordsByStudent(ownerID, studentID)
}

func (m *Memory) SaveItem(_ context.Context, it classroom.StoreItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveItem(it)
}

func (m *Memory) GetItem(_ context.Context, ownerID, itemID string) (classroom.StoreItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getItem(ownerID, itemID)
}

func (m *Memory) ListItems(_ context.Context, ownerID string, activeOnly bool) ([]classroom.StoreItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listItems(ownerID, activeOnly)
}

func (m *Memory) SetItemStock(_ context.Context, ownerID, itemID string, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.setItemStock(ownerID, itemID, stock)
}

func (m *Memory) InsertRedemption(_ context.Context, r classroom.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.insertRedemption(r)
}

func (m *Memory) GetRedemption(_ context.Context, ownerID, redemptionID string) (classroom.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getRedemption(ownerID, redemptionID)
}

func (m *Memory) UpdateRedemption(_ context.Context, r classroom.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateRedemption(r)
}

func (m *Memory) ListRedemptions(_ context.Context, ownerID string, f classroom.RedemptionFilter) ([]classroom.RedemptionView, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listRedemptions(ownerID, f)
}

func (m *Memory) AppendCall(_ context.Context, c classroom.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.appendCall(c)
}

func (m *Memory) CalledStudentIDs(_ context.Context, ownerID string, since time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.calledStudentIDs(ownerID, since)
}

func (m *Memory) ListCalls(_ context.Context, ownerID string, f classroom.CallFilter) ([]classroom.CallView, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listCalls(ownerID, f)
}

func (t *txMemory) SaveStudent(_ context.Context, st classroom.Student) error {
	return t.data.saveStudent(st)
}

func (t *txMemory) GetStudent(_ context.Context, ownerID, studentID string) (classroom.Student, error) {
	return t.data.getStudent(ownerID, studentID)
}

func (t *txMemory) ListStudents(_ context.Context, ownerID string, f classroom.StudentFilter) ([]classroom.Student, error) {
	return t.data.listStudents(ownerID, f)
}

func (t *txMemory) SetStudentPoints(_ context.Context, ownerID, studentID string, points int) error {
	return t.data.setStudentPoints(ownerID, studentID, points)
}

func (t *txMemory) SetStudentsPoints(_ context.Context, ownerID string, studentIDs []string, points int) error {
	return t.data.setStudentsPoints(ownerID, studentIDs, points)
}

func (t *txMemory) ArchiveStudent(_ context.Context, ownerID, studentID string) error {
	return t.data.archiveStudent(ownerID, studentID)
}

func (t *txMemory) SaveGroup(_ context.Context, g classroom.Group) error {
	return t.data.saveGroup(g)
}

func (t *txMemory) GetGroup(_ context.Context, ownerID, groupID string) (classroom.Group, error) {
	return t.data.getGroup(ownerID, groupID)
}

func (t *txMemory) SaveTag(_ context.Context, tg classroom.Tag) error {
	return t.data.saveTag(tg)
}

func (t *txMemory) GetTag(_ context.Context, ownerID, tagID string) (classroom.Tag, error) {
	return t.data.getTag(ownerID, tagID)
}

func (t *txMemory) TagStudent(_ context.Context, ownerID, studentID, tagID string) error {
	return t.data.tagStudent(ownerID, studentID, tagID)
}

func (t *txMemory) SaveRule(_ context.Context, r classroom.PointRule) error {
	return t.data.saveRule(r)
}

func (t *txMemory) GetRule(_ context.Context, ownerID, ruleID string) (classroom.PointRule, error) {
	return t.data.getRule(ownerID, ruleID)
}

func (t *txMemory) ListRules(_ context.Context, ownerID string) ([]classroom.PointRule, error) {
	return t.data.listRules(ownerID)
}

func (t *txMemory) AppendRecord(_ context.Context, rec classroom.PointRecord) error {
	return t.data.appendRecord(rec)
}

func (t *txMemory) ListRecords(_ context.Context, ownerID string, f classroom.RecordFilter) ([]classroom.RecordView, int, error) {
	return t.data.listRecords(ownerID, f)
}

func (t *txMemory) RecordsByStudent(_ context.Context, ownerID, studentID string) ([]classroom.PointRecord, error) {
	return t.data.recordsByStudent(ownerID, studentID)
}

func (t *txMemory) SaveItem(_ context.Context, it classroom.StoreItem) error {
	return t.data.saveItem(it)
}

func (t *txMemory) GetItem(_ context.Context, ownerID, itemID string) (classroom.StoreItem, error) {
	return t.data.getItem(ownerID, itemID)
}

func (t *txMemory) ListItems(_ context.Context, ownerID string, activeOnly bool) ([]classroom.StoreItem, error) {
	return t.data.listItems(ownerID, activeOnly)
}

func (t *txMemory) SetItemStock(_ context.Context, ownerID, itemID string, stock int) error {
	return t.data.setItemStock(ownerID, itemID, stock)
}

func (t *txMemory) InsertRedemption(_ context.Context, r classroom.Redemption) error {
	return t.data.insertRedemption(r)
}

func (t *txMemory) GetRedemption(_ context.Context, ownerID, redemptionID string) (classroom.Redemption, error) {
	return t.data.getRedemption(ownerID, redemptionID)
}

func (t *txMemory) UpdateRedemption(_ context.Context, r classroom.Redemption) error {
	return t.data.updateRedemption(r)
}

func (t *txMemory) ListRedemptions(_ context.Context, ownerID string, f classroom.RedemptionFilter) ([]classroom.RedemptionView, int, error) {
	return t.data.listRedemptions(ownerID, f)
}

func (t *txMemory) AppendCall(_ context.Context, c classroom.CallRecord) error {
	return t.data.appendCall(c)
}

func (t *txMemory) CalledStudentIDs(_ context.Context, ownerID string, since time.Time) ([]string, error) {
	return t.data.calledStudentIDs(ownerID, since)
}

func (t *txMemory) ListCalls(_ context.Context, ownerID string, f classroom.CallFilter) ([]classroom.CallView, int, error) {
	return t.data.listCalls(ownerID, f)
}

func pageSlice[T any](items []T, p classroom.Page) []T {
	size := p.Size
	if size <= 0 {
		size = 50
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	start := (number - 1) * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
