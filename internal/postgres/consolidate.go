// File path: internal/postgres/consolidate.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// consolidateStatements copies the archived legacy responses into the live
// answer table and clears the operational source tables.
var consolidateStatements = []string{
	`INSERT INTO reports.answer SELECT * FROM reports.answer_all;`,
	`ALTER TABLE reports.answer ADD COLUMN id SERIAL PRIMARY KEY;`,
	`TRUNCATE TABLE public.forms_answer;`,
	`TRUNCATE TABLE public.forms_participation;`,
	`TRUNCATE TABLE public.forms_evaluation CASCADE;`,
}

// ConsolidateLegacySource moves every row from reports.answer_all into
// reports.answer, adds a surrogate key and truncates the three operational
// tables, all inside one transaction.
//
// Known limitation, kept on purpose: the copied rows keep their legacy
// evaluation identifiers, which can collide with identifiers later assigned by
// ImportAnswers. Renumbering them against the live maximum is pending a decision
// on the offset scheme.
func (s *Store) ConsolidateLegacySource(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i, stmt := range consolidateStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute consolidation statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}
