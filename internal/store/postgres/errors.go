package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfeidau/orgmgr/internal/store"
)

// mapPostgresError turns a unique violation into store.ErrDuplicateKey,
// naming the violated index, and annotates anything else with the SQLSTATE.
// Errors that did not come from the server pass through unchanged.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}

	if pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrDuplicateKey, pgErr.ConstraintName)
	}

	class := "postgres error"
	switch {
	case pgerrcode.IsConnectionException(pgErr.Code), pgErr.Code == pgerrcode.CannotConnectNow:
		class = "database connection error"
	case pgerrcode.IsInsufficientResources(pgErr.Code):
		class = "database resource limit"
	case pgerrcode.IsTransactionRollback(pgErr.Code):
		class = "transaction conflict"
	case pgErr.Code == pgerrcode.QueryCanceled:
		class = "query canceled"
	}

	return fmt.Errorf("%s [%s]: %w", class, pgErr.Code, err)
}

// isUndefinedTable reports whether err means the collection's table has not
// been created by a first write yet.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable
}
