package core

import (
	"context"
	"fmt"
)

// TreatmentColumns holds the resolved positions of the treatment columns.
type TreatmentColumns struct {
	StableID    int
	Name        int
	Description int
	URL         int
}

// ResolveTreatmentColumns looks up the treatment columns, prefixing the
// optional ones with metaFieldPrefix.
func ResolveTreatmentColumns(idx HeaderIndex, metaFieldPrefix string) TreatmentColumns {
	return TreatmentColumns{
		StableID:    idx.Position(StableIDColumn),
		Name:        idx.Position(metaFieldPrefix + NameColumn),
		Description: idx.Position(metaFieldPrefix + DescriptionColumn),
		URL:         idx.Position(metaFieldPrefix + URLColumn),
	}
}

// complete reports whether all three descriptive columns are present.
func (c TreatmentColumns) complete() bool {
	return c.Name != Absent && c.Description != Absent && c.URL != Absent
}

// TreatmentFields are the values written to a Treatment for one record.
type TreatmentFields struct {
	StableID     string
	Name         string
	Description  string
	ReferenceURL string
}

// resolveTreatmentFields reads the treatment values of rec.
//
// The descriptive fields fall back as a group: when any of the name,
// description or url columns is missing from the header, all three take the
// stable id, even if the other columns are present.
func resolveTreatmentFields(rec Record, cols TreatmentColumns) (TreatmentFields, error) {
	stableID, err := field(rec, cols.StableID, StableIDColumn)
	if err != nil {
		return TreatmentFields{}, err
	}
	f := TreatmentFields{
		StableID:     stableID,
		Name:         stableID,
		Description:  stableID,
		ReferenceURL: stableID,
	}
	if !cols.complete() {
		return f, nil
	}
	if f.Name, err = field(rec, cols.Name, NameColumn); err != nil {
		return TreatmentFields{}, err
	}
	if f.Description, err = field(rec, cols.Description, DescriptionColumn); err != nil {
		return TreatmentFields{}, err
	}
	if f.ReferenceURL, err = field(rec, cols.URL, URLColumn); err != nil {
		return TreatmentFields{}, err
	}
	return f, nil
}

// TreatmentReconciler creates or overwrites Treatment rows.
type TreatmentReconciler struct {
	store Store
	cols  TreatmentColumns
}

// NewTreatmentReconciler returns the reconciler for treatment mode.
func NewTreatmentReconciler(store Store, idx HeaderIndex, metaFieldPrefix string) *TreatmentReconciler {
	return &TreatmentReconciler{
		store: store,
		cols:  ResolveTreatmentColumns(idx, metaFieldPrefix),
	}
}

// Reconcile implements Reconciler. A known stable id has its name,
// description and url overwritten; an unknown one is inserted. A stable id
// owned by a genetic entity of another type fails the record.
func (r *TreatmentReconciler) Reconcile(ctx context.Context, rec Record) (Outcome, error) {
	f, err := resolveTreatmentFields(rec, r.cols)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{StableID: f.StableID}
	err = r.store.InTx(ctx, func(tx Tx) error {
		existing, err := tx.FindTreatmentByStableID(ctx, f.StableID)
		if err != nil {
			return fmt.Errorf("find treatment: %w", err)
		}

		if existing == nil {
			entity, err := tx.FindGeneticEntityByStableID(ctx, f.StableID)
			if err != nil {
				return fmt.Errorf("find genetic entity: %w", err)
			}
			if entity != nil && entity.EntityType != EntityTreatment {
				return &EntityTypeMismatchError{
					StableID:  f.StableID,
					Existing:  entity.EntityType,
					Requested: EntityTreatment,
				}
			}

			out.Action = ActionCreated
			t := &Treatment{
				StableID:     f.StableID,
				Name:         f.Name,
				Description:  f.Description,
				ReferenceURL: f.ReferenceURL,
			}
			if err := tx.InsertTreatment(ctx, t); err != nil {
				return fmt.Errorf("insert treatment: %w", err)
			}
			return nil
		}

		out.Action = ActionUpdated
		existing.Name = f.Name
		existing.Description = f.Description
		existing.ReferenceURL = f.ReferenceURL
		if err := tx.UpdateTreatment(ctx, existing); err != nil {
			return fmt.Errorf("update treatment: %w", err)
		}
		return nil
	})
	if err != nil {
		return Outcome{StableID: f.StableID, Action: ActionFailed}, err
	}
	return out, nil
}
