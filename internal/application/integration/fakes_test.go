package integration

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/erp/syncengine/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memStates struct {
	mu   sync.Mutex
	rows map[uuid.UUID]integration.SyncState
}

func newMemStates() *memStates {
	return &memStates{rows: make(map[uuid.UUID]integration.SyncState)}
}

func cloneState(s integration.SyncState) *integration.SyncState {
	s.Errors = slices.Clone(s.Errors)
	s.Preview = slices.Clone(s.Preview)
	if s.Checkpoint != nil {
		cp := *s.Checkpoint
		s.Checkpoint = &cp
	}
	return &s
}

func (m *memStates) FindByID(_ context.Context, tenantID, id uuid.UUID) (*integration.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.TenantID != tenantID {
		return nil, integration.ErrSyncNotFound
	}
	return cloneState(s), nil
}

func (m *memStates) FindActive(_ context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*integration.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := integration.SyncKey(tenantID, connectorID, entityType)
	for _, s := range m.rows {
		if s.LockKey() == key && !s.Status.IsTerminal() {
			return cloneState(s), nil
		}
	}
	return nil, integration.ErrSyncNotFound
}

func (m *memStates) FindNonTerminal(context.Context) ([]integration.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncState
	for _, s := range m.rows {
		if !s.Status.IsTerminal() {
			out = append(out, *cloneState(s))
		}
	}
	return out, nil
}

func (m *memStates) FindAll(_ context.Context, tenantID uuid.UUID, _ integration.SyncStateFilter) ([]integration.SyncState, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncState
	for _, s := range m.rows {
		if s.TenantID == tenantID {
			out = append(out, *cloneState(s))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStates) LastCompletedStart(_ context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	key := integration.SyncKey(tenantID, connectorID, entityType)
	for _, s := range m.rows {
		if s.LockKey() != key || s.StartedAt == nil || !s.AdvancesWatermark() {
			continue
		}
		if s.Status != integration.SyncStatusSuccess && s.Status != integration.SyncStatusPartialFailure {
			continue
		}
		if last == nil || s.StartedAt.After(*last) {
			t := *s.StartedAt
			last = &t
		}
	}
	return last, nil
}

func (m *memStates) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (*integration.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.TenantID == tenantID && s.IdempotencyKey == key {
			return cloneState(s), nil
		}
	}
	return nil, integration.ErrSyncNotFound
}

func (m *memStates) Create(_ context.Context, s *integration.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.LockKey() == s.LockKey() && !row.Status.IsTerminal() {
			return integration.ErrSyncInProgress
		}
	}
	m.rows[s.ID] = *cloneState(*s)
	return nil
}

func (m *memStates) Save(_ context.Context, s *integration.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[s.ID]
	if !ok {
		return integration.ErrSyncNotFound
	}
	row := *cloneState(*s)
	row.CancelRequested = stored.CancelRequested || s.CancelRequested
	m.rows[s.ID] = row
	return nil
}

func (m *memStates) MarkCancelRequested(_ context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.TenantID != tenantID {
		return integration.ErrSyncNotFound
	}
	s.CancelRequested = true
	m.rows[id] = s
	return nil
}

func (m *memStates) IsCancelRequested(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].CancelRequested, nil
}

func (m *memStates) nonTerminalCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.rows {
		if s.LockKey() == key && !s.Status.IsTerminal() {
			n++
		}
	}
	return n
}

type memIDMappings struct {
	mu   sync.Mutex
	rows map[string]*integration.IDMapping
}

func newMemIDMappings() *memIDMappings {
	return &memIDMappings{rows: make(map[string]*integration.IDMapping)}
}

func idKey(tenantID uuid.UUID, src integration.SystemCode, srcID string, tgt integration.SystemCode) string {
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, src, srcID, tgt)
}

func (m *memIDMappings) FindBySource(_ context.Context, tenantID uuid.UUID, src integration.SystemCode, srcID string, tgt integration.SystemCode) (*integration.IDMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[idKey(tenantID, src, srcID, tgt)]
	if !ok {
		return nil, integration.ErrIDMappingNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memIDMappings) FindByTarget(_ context.Context, tenantID uuid.UUID, tgt integration.SystemCode, tgtID string, src integration.SystemCode) (*integration.IDMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TenantID == tenantID && row.TargetSystem == tgt && row.TargetID == tgtID && row.SourceSystem == src {
			cp := *row
			return &cp, nil
		}
	}
	return nil, integration.ErrIDMappingNotFound
}

func (m *memIDMappings) FindAll(_ context.Context, tenantID uuid.UUID, _ integration.IDMappingFilter) ([]integration.IDMapping, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.IDMapping
	for _, row := range m.rows {
		if row.TenantID == tenantID {
			out = append(out, *row)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memIDMappings) Create(_ context.Context, row *integration.IDMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idKey(row.TenantID, row.SourceSystem, row.SourceID, row.TargetSystem)
	if _, ok := m.rows[k]; ok {
		return integration.ErrIDMappingExists
	}
	cp := *row
	m.rows[k] = &cp
	return nil
}

func (m *memIDMappings) UpdateSynced(_ context.Context, row *integration.IDMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idKey(row.TenantID, row.SourceSystem, row.SourceID, row.TargetSystem)
	stored, ok := m.rows[k]
	if !ok {
		return integration.ErrIDMappingNotFound
	}
	stored.LastSyncedHash = row.LastSyncedHash
	stored.LastSyncedAt = row.LastSyncedAt
	return nil
}

func (m *memIDMappings) get(tenantID uuid.UUID, src integration.SystemCode, srcID string, tgt integration.SystemCode) *integration.IDMapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[idKey(tenantID, src, srcID, tgt)]
}

func (m *memIDMappings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memFailures struct {
	mu   sync.Mutex
	rows []*integration.FailedRecord
}

func (m *memFailures) FindByID(_ context.Context, tenantID, id uuid.UUID) (*integration.FailedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && r.TenantID == tenantID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, integration.ErrFailedRecordNotFound
}

func (m *memFailures) FindUnresolved(_ context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) ([]integration.FailedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.FailedRecord
	for _, r := range m.rows {
		if r.TenantID == tenantID && r.ConnectorID == connectorID && r.EntityType == entityType && r.ResolvedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memFailures) Upsert(_ context.Context, rec *integration.FailedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ConnectorID == rec.ConnectorID && r.EntityType == rec.EntityType && r.ExternalID == rec.ExternalID && r.ResolvedAt == nil {
			r.Attempts++
			r.Kind, r.Message, r.SyncID = rec.Kind, rec.Message, rec.SyncID
			return nil
		}
	}
	cp := *rec
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memFailures) MarkResolved(_ context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, r := range m.rows {
		if r.TenantID == tenantID && r.ConnectorID == connectorID && r.EntityType == entityType && slices.Contains(ids, r.ExternalID) && r.ResolvedAt == nil {
			r.ResolvedAt = &now
		}
	}
	return nil
}

type memConflicts struct {
	mu   sync.Mutex
	rows []*integration.SyncConflict
}

func (m *memConflicts) FindByID(_ context.Context, tenantID, id uuid.UUID) (*integration.SyncConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id && c.TenantID == tenantID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, integration.ErrConflictNotFound
}

func (m *memConflicts) FindAll(_ context.Context, tenantID uuid.UUID, filter integration.ConflictFilter) ([]integration.SyncConflict, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncConflict
	for _, c := range m.rows {
		if c.TenantID != tenantID || (filter.Status != nil && c.Status != *filter.Status) {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (m *memConflicts) FindPendingForRecord(_ context.Context, tenantID uuid.UUID, src integration.SystemCode, srcID string, tgt integration.SystemCode) ([]integration.SyncConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncConflict
	for _, c := range m.rows {
		if c.TenantID == tenantID && c.SourceSystem == src && c.SourceID == srcID && c.TargetSystem == tgt &&
			c.Status == integration.ConflictStatusPendingReview {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memConflicts) CreateBatch(_ context.Context, conflicts []*integration.SyncConflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range conflicts {
		cp := *c
		m.rows = append(m.rows, &cp)
	}
	return nil
}

func (m *memConflicts) Save(_ context.Context, c *integration.SyncConflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == c.ID {
			cp := *c
			m.rows[i] = &cp
			return nil
		}
	}
	return integration.ErrConflictNotFound
}

func (m *memConflicts) all() []integration.SyncConflict {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]integration.SyncConflict, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, *c)
	}
	return out
}

type memConfigs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*integration.ConnectorConfig
}

func newMemConfigs(cfgs ...*integration.ConnectorConfig) *memConfigs {
	m := &memConfigs{rows: make(map[uuid.UUID]*integration.ConnectorConfig)}
	for _, c := range cfgs {
		m.rows[c.ID] = c
	}
	return m
}

func (m *memConfigs) FindByID(_ context.Context, tenantID, id uuid.UUID) (*integration.ConnectorConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.TenantID != tenantID {
		return nil, integration.ErrConnectorNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConfigs) FindAll(_ context.Context, tenantID uuid.UUID) ([]integration.ConnectorConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.ConnectorConfig
	for _, c := range m.rows {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b integration.ConnectorConfig) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *memConfigs) Save(_ context.Context, c *integration.ConnectorConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memConfigs) Delete(_ context.Context, _, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memMappings struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*integration.FieldMapping
}

func newMemMappings() *memMappings {
	return &memMappings{rows: make(map[uuid.UUID]*integration.FieldMapping)}
}

func (m *memMappings) FindByID(_ context.Context, tenantID, id uuid.UUID) (*integration.FieldMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.TenantID != tenantID {
		return nil, integration.ErrMappingNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memMappings) FindFor(_ context.Context, tenantID uuid.UUID, src, tgt integration.SystemCode, et integration.EntityType) (*integration.FieldMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TenantID == tenantID && row.SourceSystem == src && row.TargetSystem == tgt && row.EntityType == et {
			cp := *row
			return &cp, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (m *memMappings) FindAll(_ context.Context, tenantID uuid.UUID, _ integration.FieldMappingFilter) ([]integration.FieldMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.FieldMapping
	for _, row := range m.rows {
		if row.TenantID == tenantID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memMappings) Save(_ context.Context, row *integration.FieldMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *row
	m.rows[row.ID] = &cp
	return nil
}

func (m *memMappings) Delete(_ context.Context, _, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memWebhookEvents struct {
	mu   sync.Mutex
	rows map[string]*integration.WebhookEvent
}

func newMemWebhookEvents() *memWebhookEvents {
	return &memWebhookEvents{rows: make(map[string]*integration.WebhookEvent)}
}

func (m *memWebhookEvents) Create(_ context.Context, e *integration.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := e.TenantID.String() + "|" + e.EventKey
	if _, ok := m.rows[k]; ok {
		return integration.ErrDuplicateWebhook
	}
	cp := *e
	m.rows[k] = &cp
	return nil
}

func (m *memWebhookEvents) Save(_ context.Context, e *integration.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.rows[e.TenantID.String()+"|"+e.EventKey] = &cp
	return nil
}

func (m *memWebhookEvents) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.rows {
		if e.ID == id {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memWebhookEvents) ExistsByKey(_ context.Context, tenantID uuid.UUID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[tenantID.String()+"|"+key]
	return ok, nil
}

func (m *memWebhookEvents) FindDeferred(_ context.Context, tenantID uuid.UUID, entityType integration.EntityType) ([]*integration.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*integration.WebhookEvent
	for _, e := range m.rows {
		if e.TenantID == tenantID && e.EntityType == entityType && e.IsDeferred() {
			cp := *e
			cp.Deferred = slices.Clone(e.Deferred)
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *integration.WebhookEvent) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memWebhookEvents) get(tenantID uuid.UUID, key string) *integration.WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[tenantID.String()+"|"+key]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (m *memWebhookEvents) PurgeBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memWebhookEvents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memSchedules struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*integration.SyncSchedule
}

func newMemSchedules() *memSchedules {
	return &memSchedules{rows: make(map[uuid.UUID]*integration.SyncSchedule)}
}

func (m *memSchedules) FindByID(_ context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.TenantID != tenantID {
		return nil, integration.ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSchedules) FindAll(_ context.Context, tenantID uuid.UUID) ([]integration.SyncSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncSchedule
	for _, s := range m.rows {
		if s.TenantID == tenantID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSchedules) FindEnabled(context.Context) ([]integration.SyncSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncSchedule
	for _, s := range m.rows {
		if s.Enabled {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSchedules) FindByKey(_ context.Context, tenantID, connectorID uuid.UUID, et integration.EntityType) (*integration.SyncSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.TenantID == tenantID && s.ConnectorID == connectorID && s.EntityType == et {
			cp := *s
			return &cp, nil
		}
	}
	return nil, integration.ErrScheduleNotFound
}

func (m *memSchedules) Save(_ context.Context, s *integration.SyncSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memSchedules) RecordRun(_ context.Context, tenantID, id, syncID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.TenantID != tenantID {
		return integration.ErrScheduleNotFound
	}
	s.RecordRun(syncID, at)
	return nil
}

func (m *memSchedules) Delete(_ context.Context, _, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// ---------------------------------------------------------------------------
// Connectors
// ---------------------------------------------------------------------------

// docCodec decodes canonical-shaped records and overlays mapped fields on encode
type docCodec struct{}

func (docCodec) Decode(rec integration.RawRecord) (integration.Entity, error) {
	data := make(map[string]any, len(rec.Data)+1)
	for k, v := range rec.Data {
		data[k] = v
	}
	data["id"] = rec.ExternalID
	return integration.FromDocument(rec.EntityType, data)
}

func (docCodec) Encode(e integration.Entity, fields map[string]any) (map[string]any, error) {
	doc, err := integration.ToDocument(e)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		doc[k] = v
	}
	return doc, nil
}

type fakeConnector struct {
	system integration.SystemCode

	mu        sync.Mutex
	records   map[integration.EntityType][]integration.RawRecord
	stored    map[string]integration.RawRecord
	pushes    []integration.PushRequest
	fetched   []int
	nextID    int
	pushErrs  map[string]error
	fetchErrs map[int]error
	testErrs  []error
	refreshes int
	onFetch   func(page int)
	noLookup  bool
}

func newFakeConnector(system integration.SystemCode) *fakeConnector {
	return &fakeConnector{
		system:    system,
		records:   make(map[integration.EntityType][]integration.RawRecord),
		stored:    make(map[string]integration.RawRecord),
		pushErrs:  make(map[string]error),
		fetchErrs: make(map[int]error),
	}
}

func (c *fakeConnector) System() integration.SystemCode { return c.system }
func (c *fakeConnector) Codec() integration.Codec       { return docCodec{} }

// add registers or replaces a fetchable record that is also readable by Get
func (c *fakeConnector) add(et integration.EntityType, id string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := integration.RawRecord{ExternalID: id, EntityType: et, Data: data}
	c.stored[string(et)+":"+id] = rec
	for i, existing := range c.records[et] {
		if existing.ExternalID == id {
			c.records[et][i] = rec
			return
		}
	}
	c.records[et] = append(c.records[et], rec)
}

// put stores a record readable by Get without making it fetchable
func (c *fakeConnector) put(et integration.EntityType, id string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored[string(et)+":"+id] = integration.RawRecord{ExternalID: id, EntityType: et, Data: data}
}

func (c *fakeConnector) FetchPage(ctx context.Context, req integration.FetchRequest) (*integration.Page, error) {
	c.mu.Lock()
	c.fetched = append(c.fetched, req.Page)
	hook := c.onFetch
	fetchErr := c.fetchErrs[req.Page]
	all := slices.Clone(c.records[req.EntityType])
	c.mu.Unlock()

	if hook != nil {
		hook(req.Page)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if len(req.IDs) > 0 {
		all = slices.DeleteFunc(all, func(r integration.RawRecord) bool { return !slices.Contains(req.IDs, r.ExternalID) })
	}
	start := (req.Page - 1) * req.PageSize
	if start >= len(all) {
		return &integration.Page{}, nil
	}
	end := min(start+req.PageSize, len(all))
	return &integration.Page{Records: all[start:end]}, nil
}

func (c *fakeConnector) Push(_ context.Context, req integration.PushRequest) (*integration.PushResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.pushErrs[req.Entity.ExternalID()]; err != nil {
		return nil, err
	}
	c.pushes = append(c.pushes, req)
	doc, err := integration.ToDocument(req.Entity)
	if err != nil {
		return nil, err
	}
	delete(doc, "id")
	id, created := req.RemoteID, false
	if id == "" {
		c.nextID++
		id = fmt.Sprintf("%s-%d", c.system, c.nextID)
		created = true
	}
	rec := integration.RawRecord{ExternalID: id, EntityType: req.EntityType, Data: doc}
	c.stored[string(req.EntityType)+":"+id] = rec
	for i, existing := range c.records[req.EntityType] {
		if existing.ExternalID == id {
			c.records[req.EntityType][i] = rec
		}
	}
	return &integration.PushResult{RemoteID: id, Created: created}, nil
}

func (c *fakeConnector) RefreshAuth(context.Context, uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	return nil
}

func (c *fakeConnector) TestConnection(context.Context, uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.testErrs) == 0 {
		return nil
	}
	err := c.testErrs[0]
	c.testErrs = c.testErrs[1:]
	return err
}

func (c *fakeConnector) Get(_ context.Context, _ uuid.UUID, et integration.EntityType, id string) (*integration.RawRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.stored[string(et)+":"+id]
	if !ok {
		return nil, integration.ErrEntityNotFound
	}
	return &rec, nil
}

func (c *fakeConnector) Lookup(_ context.Context, _ uuid.UUID, et integration.EntityType, field, value string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.noLookup {
		return "", false, nil
	}
	for _, rec := range c.stored {
		if rec.EntityType == et && strings.EqualFold(fmt.Sprint(rec.Data[field]), value) {
			return rec.ExternalID, true, nil
		}
	}
	return "", false, nil
}

func (c *fakeConnector) pushed() []integration.PushRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pushes)
}

func (c *fakeConnector) pushedOf(et integration.EntityType) []integration.PushRequest {
	var out []integration.PushRequest
	for _, p := range c.pushed() {
		if p.EntityType == et {
			out = append(out, p)
		}
	}
	return out
}

func (c *fakeConnector) fetchedPages() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.fetched)
}

type memRegistry struct {
	connectors map[integration.SystemCode]integration.Connector
}

func newMemRegistry(cs ...integration.Connector) *memRegistry {
	r := &memRegistry{connectors: make(map[integration.SystemCode]integration.Connector)}
	for _, c := range cs {
		r.Register(c)
	}
	return r
}

func (r *memRegistry) Register(c integration.Connector) { r.connectors[c.System()] = c }

func (r *memRegistry) Get(s integration.SystemCode) (integration.Connector, error) {
	c, ok := r.connectors[s]
	if !ok {
		return nil, integration.ErrConnectorNotFound
	}
	return c, nil
}

func (r *memRegistry) Systems() []integration.SystemCode {
	out := make([]integration.SystemCode, 0, len(r.connectors))
	for s := range r.connectors {
		out = append(out, s)
	}
	return out
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

type recordingQueue struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, _, syncID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, syncID)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type keyLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newKeyLocker() *keyLocker {
	return &keyLocker{held: make(map[string]bool)}
}

func (l *keyLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

type memIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{keys: make(map[string]bool)}
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, id string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[id] {
		return false, nil
	}
	s.keys[id] = true
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[id], nil
}

func (s *memIdempotencyStore) Close() error { return nil }

// MockNotifier is a mock implementation of integration.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n integration.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockSyncTrigger is a mock implementation of SyncTrigger
type MockSyncTrigger struct {
	mock.Mock
}

func (m *MockSyncTrigger) Trigger(ctx context.Context, cmd TriggerCommand) (*integration.SyncState, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncState), args.Error(1)
}
