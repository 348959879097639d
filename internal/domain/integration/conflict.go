package integration

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Conflict resolution
// ---------------------------------------------------------------------------

// Side names one end of a connector
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// ConflictDecision is the outcome of applying a strategy to a conflict.
// Winner is empty when the conflict is deferred to manual review.
type ConflictDecision struct {
	Winner    Side
	Effective ResolutionStrategy
}

// Deferred reports whether no automatic write should happen
func (d ConflictDecision) Deferred() bool {
	return d.Winner == ""
}

// DecideConflict applies a strategy. most-recent-wins compares modification
// times and breaks ties toward the source; the decision carries the strategy
// that effectively applied.
func DecideConflict(strategy ResolutionStrategy, sourceModified, targetModified time.Time) ConflictDecision {
	switch strategy {
	case ResolutionTargetWins:
		return ConflictDecision{Winner: SideTarget, Effective: ResolutionTargetWins}
	case ResolutionMostRecentWins:
		if targetModified.After(sourceModified) {
			return ConflictDecision{Winner: SideTarget, Effective: ResolutionTargetWins}
		}
		return ConflictDecision{Winner: SideSource, Effective: ResolutionSourceWins}
	case ResolutionManual:
		return ConflictDecision{Effective: ResolutionManual}
	default:
		return ConflictDecision{Winner: SideSource, Effective: ResolutionSourceWins}
	}
}

// ChangeSet tells which sides changed since the last successful sync
type ChangeSet struct {
	SourceChanged bool
	TargetChanged bool
}

// IsConflict reports whether both sides changed independently
func (c ChangeSet) IsConflict() bool {
	return c.SourceChanged && c.TargetChanged
}

// DetectChanges compares both sides' content hashes with the last synced hash
func DetectChanges(m *IDMapping, sourceHash, targetHash string) ChangeSet {
	if m == nil || m.LastSyncedHash == "" {
		return ChangeSet{SourceChanged: true}
	}
	return ChangeSet{
		SourceChanged: sourceHash != m.LastSyncedHash,
		TargetChanged: targetHash != "" && targetHash != m.LastSyncedHash,
	}
}

// FieldDiff is one leaf that differs between two documents
type FieldDiff struct {
	Path   string
	Local  any
	Remote any
}

// DiffDocuments returns the leaves that differ between the local and remote
// documents, sorted by path. Keys in ignore are skipped at any depth.
func DiffDocuments(local, remote map[string]any, ignore ...string) []FieldDiff {
	skip := make(map[string]struct{}, len(ignore))
	for _, k := range ignore {
		skip[k] = struct{}{}
	}
	lf := make(map[string]any)
	rf := make(map[string]any)
	flatten("", local, lf, skip)
	flatten("", remote, rf, skip)

	keys := make(map[string]struct{}, len(lf)+len(rf))
	for k := range lf {
		keys[k] = struct{}{}
	}
	for k := range rf {
		keys[k] = struct{}{}
	}
	diffs := make([]FieldDiff, 0)
	for k := range keys {
		if !reflect.DeepEqual(lf[k], rf[k]) {
			diffs = append(diffs, FieldDiff{Path: k, Local: lf[k], Remote: rf[k]})
		}
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs
}

func flatten(prefix string, v any, out map[string]any, skip map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if _, ok := skip[k]; ok {
				continue
			}
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			flatten(p, child, out, skip)
		}
	case []any:
		for i, child := range t {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), child, out, skip)
		}
	default:
		out[prefix] = v
	}
}

// ---------------------------------------------------------------------------
// SyncConflict Entity
// ---------------------------------------------------------------------------

// ConflictStatus is the state of a SyncConflict
type ConflictStatus string

const (
	ConflictStatusResolved      ConflictStatus = "resolved"
	ConflictStatusPendingReview ConflictStatus = "pending_review"
)

// SyncConflict records one field that changed on both sides
type SyncConflict struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ConnectorID   uuid.UUID
	SyncID        uuid.UUID
	EntityType    EntityType
	SourceSystem  SystemCode
	SourceID      string
	TargetSystem  SystemCode
	TargetID      string
	Field         string
	LocalValue    any
	RemoteValue   any
	Strategy      ResolutionStrategy
	ResolvedValue any
	Status        ConflictStatus
	DetectedAt    time.Time
	ResolvedAt    *time.Time
}

// NewSyncConflict builds a conflict for one differing field. A deferred
// decision leaves the conflict pending review.
func NewSyncConflict(state *SyncState, m *IDMapping, diff FieldDiff, decision ConflictDecision) *SyncConflict {
	now := time.Now()
	c := &SyncConflict{
		ID:           uuid.New(),
		TenantID:     state.TenantID,
		ConnectorID:  state.ConnectorID,
		SyncID:       state.ID,
		EntityType:   state.EntityType,
		SourceSystem: m.SourceSystem,
		SourceID:     m.SourceID,
		TargetSystem: m.TargetSystem,
		TargetID:     m.TargetID,
		Field:        diff.Path,
		LocalValue:   diff.Local,
		RemoteValue:  diff.Remote,
		Strategy:     decision.Effective,
		DetectedAt:   now,
	}
	switch decision.Winner {
	case SideSource:
		c.resolve(diff.Local, now)
	case SideTarget:
		c.resolve(diff.Remote, now)
	default:
		c.Status = ConflictStatusPendingReview
	}
	return c
}

func (c *SyncConflict) resolve(value any, at time.Time) {
	c.ResolvedValue = value
	c.Status = ConflictStatusResolved
	c.ResolvedAt = &at
}

// ResolveManually applies an operator decision to a pending conflict
func (c *SyncConflict) ResolveManually(choice Side) error {
	if c.Status == ConflictStatusResolved {
		return ErrConflictResolved
	}
	now := time.Now()
	switch choice {
	case SideSource:
		c.resolve(c.LocalValue, now)
	case SideTarget:
		c.resolve(c.RemoteValue, now)
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidStrategy, choice)
	}
	return nil
}

// ConflictFilter filters conflict listings
type ConflictFilter struct {
	ConnectorID *uuid.UUID
	Status      *ConflictStatus
	EntityType  *EntityType
	Page        int
	PageSize    int
}

// SyncConflictRepository persists conflicts
type SyncConflictRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncConflict, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ConflictFilter) ([]SyncConflict, int64, error)
	// FindPendingForRecord lists open conflicts of one mapped record
	FindPendingForRecord(ctx context.Context, tenantID uuid.UUID, sourceSystem SystemCode, sourceID string, targetSystem SystemCode) ([]SyncConflict, error)
	CreateBatch(ctx context.Context, conflicts []*SyncConflict) error
	Save(ctx context.Context, c *SyncConflict) error
}
