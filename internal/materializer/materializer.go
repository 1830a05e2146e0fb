// Package materializer performs ordered, transactional, idempotent
// multi-table persistence of one mapped record at a time.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/metrics"
	"github.com/caseflow-systems/caseflow-import/internal/repository"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

// Contact is one logical contact of a record. Partner rows carry two
// (client and debtor); most sources carry one.
type Contact struct {
	Role       string
	ExternalID string // defaults to the record external id when empty
	Fields     map[string]any
}

// Financial is one financial entry of a record.
type Financial struct {
	Type   string
	Fields map[string]any
}

// Record is the per-record projection built by an adapter from the raw
// source data after conversion. It is discarded after materialization.
type Record struct {
	Contacts   []Contact
	Case       map[string]any
	Financials []Financial
}

// Empty reports whether the record carries no data for any table.
func (r *Record) Empty() bool {
	return len(r.Contacts) == 0 && len(r.Case) == 0 && len(r.Financials) == 0
}

// CreatedIDs collects the row IDs created per table during one Persist call.
type CreatedIDs map[string][]string

func (c CreatedIDs) add(table, id string) {
	c[table] = append(c[table], id)
}

// Materializer writes mapped records through the persistence port.
type Materializer struct {
	store repository.Store
}

func New(store repository.Store) *Materializer {
	return &Materializer{store: store}
}

// Persist writes one logical record inside a single transaction, in fixed
// order contacts -> cases -> financials so foreign keys resolve. Any write
// failure rolls back every write of this record; other records of the same
// batch are unaffected. When a row with the same external id and source
// already exists, it is updated instead of inserted, which makes webhook
// replays and incremental syncs safe to repeat.
func (m *Materializer) Persist(ctx context.Context, rec *Record, externalID, source string) (CreatedIDs, error) {
	if rec == nil || rec.Empty() {
		return nil, errors.New("record has no mapped data")
	}

	start := time.Now()
	created := make(CreatedIDs)

	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		contactIDs := make([]contactRef, 0, len(rec.Contacts))

		for _, contact := range rec.Contacts {
			extID := contact.ExternalID
			if extID == "" {
				extID = externalID
			}
			id, wasCreated, err := m.upsert(ctx, tx, schema.TableContacts, contact.Fields, extID, source)
			if err != nil {
				return fmt.Errorf("contact: %w", err)
			}
			if wasCreated {
				created.add(schema.TableContacts, id)
			}
			contactIDs = append(contactIDs, contactRef{id: id, role: contact.Role, created: wasCreated})
		}

		var caseID string
		caseCreated := false
		if len(rec.Case) > 0 {
			id, wasCreated, err := m.upsert(ctx, tx, schema.TableCases, rec.Case, externalID, source)
			if err != nil {
				return fmt.Errorf("case: %w", err)
			}
			if wasCreated {
				created.add(schema.TableCases, id)
			}
			caseID = id
			caseCreated = wasCreated
		}

		// A join row only makes sense when both sides exist in this record.
		// On pure-update replays neither side is new, so the link from the
		// first delivery already exists and is not duplicated.
		if caseID != "" {
			for _, ref := range contactIDs {
				if !caseCreated && !ref.created {
					continue
				}
				role := ref.role
				if role == "" {
					role = "client"
				}
				linkID, err := tx.Insert(ctx, schema.TableCaseContacts, map[string]any{
					"case_id":    caseID,
					"contact_id": ref.id,
					"role":       role,
				})
				if err != nil {
					return fmt.Errorf("case contact link: %w", err)
				}
				created.add(schema.TableCaseContacts, linkID)
			}
		}

		for _, fin := range rec.Financials {
			fields := cloneFields(fin.Fields)
			if caseID != "" {
				fields["case_id"] = caseID
			}
			if fin.Type != "" {
				fields["financial_type"] = fin.Type
			}
			extID := externalID
			if extID != "" && fin.Type != "" {
				extID += "-" + fin.Type
			}
			id, wasCreated, err := m.upsert(ctx, tx, schema.TableFinancials, fields, extID, source)
			if err != nil {
				return fmt.Errorf("financial: %w", err)
			}
			if wasCreated {
				created.add(schema.TableFinancials, id)
			}
		}

		return nil
	})

	metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PersistErrors.Inc()
		return nil, err
	}
	return created, nil
}

type contactRef struct {
	id      string
	role    string
	created bool
}

// upsert inserts the row, or updates the existing row carrying the same
// external id and source. Rows without an external id skip the lookup and
// always insert; the external_id and source columns are still written, as
// empty strings if need be, because the target tables declare them NOT NULL.
func (m *Materializer) upsert(ctx context.Context, tx repository.Tx, table string, fields map[string]any, externalID, source string) (string, bool, error) {
	values := cloneFields(fields)
	values["external_id"] = externalID
	values["source"] = source

	if externalID != "" {
		existing, err := tx.FindByExternalID(ctx, table, externalID, source)
		if err == nil {
			if err := tx.Update(ctx, table, existing, values); err != nil {
				return "", false, err
			}
			return existing, false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", false, err
		}
	}

	id, err := tx.Insert(ctx, table, values)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func cloneFields(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
