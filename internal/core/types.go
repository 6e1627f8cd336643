package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EntityType is the genetic alteration type selected for an import run.
type EntityType string

const (
	EntityMutationExtended            EntityType = "MUTATION_EXTENDED"
	EntityMutationUncalled            EntityType = "MUTATION_UNCALLED"
	EntityStructuralVariant           EntityType = "STRUCTURAL_VARIANT"
	EntityCopyNumberAlteration        EntityType = "COPY_NUMBER_ALTERATION"
	EntityMicroRNAExpression          EntityType = "MICRO_RNA_EXPRESSION"
	EntityMRNAExpression              EntityType = "MRNA_EXPRESSION"
	EntityMRNAExpressionNormals       EntityType = "MRNA_EXPRESSION_NORMALS"
	EntityRNAExpression               EntityType = "RNA_EXPRESSION"
	EntityMethylation                 EntityType = "METHYLATION"
	EntityMethylationBinary           EntityType = "METHYLATION_BINARY"
	EntityPhosphorylation             EntityType = "PHOSPHORYLATION"
	EntityProteinLevel                EntityType = "PROTEIN_LEVEL"
	EntityProteinArrayProteinLevel    EntityType = "PROTEIN_ARRAY_PROTEIN_LEVEL"
	EntityProteinArrayPhosphorylation EntityType = "PROTEIN_ARRAY_PHOSPHORYLATION"
	EntityGenesetScore                EntityType = "GENESET_SCORE"
	EntityGenericAssay                EntityType = "GENERIC_ASSAY"
	EntityTreatment                   EntityType = "TREATMENT"
)

var entityTypes = []EntityType{
	EntityMutationExtended,
	EntityMutationUncalled,
	EntityStructuralVariant,
	EntityCopyNumberAlteration,
	EntityMicroRNAExpression,
	EntityMRNAExpression,
	EntityMRNAExpressionNormals,
	EntityRNAExpression,
	EntityMethylation,
	EntityMethylationBinary,
	EntityPhosphorylation,
	EntityProteinLevel,
	EntityProteinArrayProteinLevel,
	EntityProteinArrayPhosphorylation,
	EntityGenesetScore,
	EntityGenericAssay,
	EntityTreatment,
}

// EntityTypes returns every accepted entity type in declaration order.
func EntityTypes() []EntityType {
	out := make([]EntityType, len(entityTypes))
	copy(out, entityTypes)
	return out
}

// ParseEntityType matches s case-insensitively against the known entity types.
func ParseEntityType(s string) (EntityType, error) {
	s = strings.TrimSpace(s)
	for _, t := range entityTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown entity type %q", ErrUsage, s)
}

// Mode reports which reconciler variant handles this entity type.
func (t EntityType) Mode() Mode {
	if t == EntityTreatment {
		return ModeTreatment
	}
	return ModeGenericAssay
}

// Mode selects the reconciliation variant for a run.
type Mode string

const (
	ModeTreatment    Mode = "treatment"
	ModeGenericAssay Mode = "generic_assay"
)

// GeneticEntity is the identity record that generic assay properties attach to.
type GeneticEntity struct {
	ID         int64
	EntityType EntityType
	StableID   string
}

// Treatment carries the denormalized display fields of a treatment entity.
type Treatment struct {
	ID           int64
	StableID     string
	Name         string
	Description  string
	ReferenceURL string
}

// PropertyMap is the set of key/value properties attached to one genetic entity.
type PropertyMap map[string]string

// Keys returns the property keys in sorted order.
func (m PropertyMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record is one data line of the input file, split on tab.
type Record struct {
	Line   int // 1-indexed line number in the source file
	Fields []string
}

// Action is what the reconciler did with a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionFailed  Action = "failed"
)

// Outcome describes the committed result of reconciling one record.
type Outcome struct {
	StableID   string
	Action     Action
	Properties int // Number of properties written (generic assay only)
}

// Reconciler creates or updates the entity described by one record.
// Implementations are selected once per run by entity type.
type Reconciler interface {
	Reconcile(ctx context.Context, rec Record) (Outcome, error)
}

// ImportOptions configures one import run.
type ImportOptions struct {
	Source      string     // Human-readable origin of the data (path or URL)
	EntityType  EntityType // Genetic alteration type; TREATMENT selects treatment mode
	ColumnNames []string   // Generic assay property columns
	UpdateInfo  bool       // Recorded only; does not gate any reconciliation path
	Size        int64      // Input length in bytes for progress reporting; 0 if unknown
}

// ParseColumnNames splits a comma-separated column list, trimming each name
// and dropping empty entries. The trimmed name is the stored property key; an
// untrimmed list such as "a, b" would otherwise store the key " b".
func ParseColumnNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FailedRecord contains information about a record that was not committed.
type FailedRecord struct {
	Line     int    `json:"line"`
	StableID string `json:"stableId,omitempty"`
	Reason   string `json:"reason"`
	Code     string `json:"code"`
}

// ImportResult contains the final result of an import run.
type ImportResult struct {
	RunID      string         `json:"runId"`
	Source     string         `json:"source"`
	EntityType EntityType     `json:"entityType"`
	Records    int            `json:"records"`
	Created    int            `json:"created"`
	Updated    int            `json:"updated"`
	Failed     []FailedRecord `json:"failed,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"` // Non-empty if the run aborted
}

// ImportRun is the persisted history entry of one import run.
type ImportRun struct {
	ID          string
	Source      string
	EntityType  EntityType
	ColumnNames []string
	UpdateInfo  bool
	Records     int
	Created     int
	Updated     int
	Failed      int
	StartedAt   time.Time
	FinishedAt  time.Time
	Error       string
}

// Run converts a finished result into its history entry.
func (r *ImportResult) Run(opts ImportOptions, started time.Time) ImportRun {
	return ImportRun{
		ID:          r.RunID,
		Source:      r.Source,
		EntityType:  r.EntityType,
		ColumnNames: opts.ColumnNames,
		UpdateInfo:  opts.UpdateInfo,
		Records:     r.Records,
		Created:     r.Created,
		Updated:     r.Updated,
		Failed:      len(r.Failed),
		StartedAt:   started,
		FinishedAt:  started.Add(r.Duration),
		Error:       r.Error,
	}
}
