package core

import (
	"context"
	"fmt"
)

// propertyColumn is a requested property column that exists in the header.
type propertyColumn struct {
	name string // As requested; used verbatim as the property key
	pos  int
}

// GenericAssayReconciler creates genetic entities and replaces their
// property sets.
type GenericAssayReconciler struct {
	store      Store
	entityType EntityType
	stableID   int
	columns    []propertyColumn
	replacer   PropertyReplacer
}

// NewGenericAssayReconciler returns the reconciler for every non-treatment
// entity type. Requested column names missing from the header are dropped
// here and never looked at again.
func NewGenericAssayReconciler(store Store, idx HeaderIndex, entityType EntityType, columnNames []string) *GenericAssayReconciler {
	r := &GenericAssayReconciler{
		store:      store,
		entityType: entityType,
		stableID:   idx.Position(StableIDColumn),
	}
	for _, name := range columnNames {
		if pos := idx.Position(name); pos != Absent {
			r.columns = append(r.columns, propertyColumn{name: name, pos: pos})
		}
	}
	return r
}

// buildPropertyMap reads the requested columns of rec.
func (r *GenericAssayReconciler) buildPropertyMap(rec Record) (PropertyMap, error) {
	props := make(PropertyMap, len(r.columns))
	for _, col := range r.columns {
		v, err := field(rec, col.pos, col.name)
		if err != nil {
			return nil, err
		}
		props[col.name] = v
	}
	return props, nil
}

// Reconcile implements Reconciler. The entity insert (if any), the property
// delete and every property insert share one transaction.
func (r *GenericAssayReconciler) Reconcile(ctx context.Context, rec Record) (Outcome, error) {
	stableID, err := field(rec, r.stableID, StableIDColumn)
	if err != nil {
		return Outcome{}, err
	}
	props, err := r.buildPropertyMap(rec)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{StableID: stableID}
	err = r.store.InTx(ctx, func(tx Tx) error {
		existing, err := tx.FindGeneticEntityByStableID(ctx, stableID)
		if err != nil {
			return fmt.Errorf("find genetic entity: %w", err)
		}

		var writes PropertyWrites
		if existing == nil {
			out.Action = ActionCreated
			entity := &GeneticEntity{EntityType: r.entityType, StableID: stableID}
			if err := tx.InsertGeneticEntity(ctx, entity); err != nil {
				return fmt.Errorf("insert genetic entity: %w", err)
			}
			writes, err = r.replacer.Add(ctx, tx, stableID, props)
		} else {
			out.Action = ActionUpdated
			writes, err = r.replacer.Replace(ctx, tx, stableID, props)
		}
		out.Properties = len(writes)
		return err
	})
	if err != nil {
		return Outcome{StableID: stableID, Action: ActionFailed}, err
	}
	return out, nil
}

// NewReconciler selects the reconciler variant for entityType.
func NewReconciler(store Store, idx HeaderIndex, opts ImportOptions, metaFieldPrefix string) Reconciler {
	if opts.EntityType.Mode() == ModeTreatment {
		return NewTreatmentReconciler(store, idx, metaFieldPrefix)
	}
	return NewGenericAssayReconciler(store, idx, opts.EntityType, opts.ColumnNames)
}
