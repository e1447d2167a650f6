package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Storage failure classes. They are safe to show to clients.
const (
	ClassTimeout     = "timeout"
	ClassCanceled    = "canceled"
	ClassUnavailable = "unavailable"
	ClassConflict    = "conflict"
	ClassInternal    = "internal"
)

// Classify maps a storage error to an opaque class without leaking driver
// details.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.Is(err, mysql.ErrInvalidConn):
		return ClassUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassUnavailable
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1213, 1205, 1451, 1452:
			// duplicate key, deadlock, lock wait timeout, foreign keys
			return ClassConflict
		case 1040, 1203:
			return ClassUnavailable
		}
		return ClassInternal
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23", "40":
			// integrity violation, transaction rollback (serialization, deadlock)
			return ClassConflict
		case "08", "53", "57":
			return ClassUnavailable
		}
		return ClassInternal
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint:
			return ClassConflict
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return ClassUnavailable
		}
		return ClassInternal
	}

	return ClassInternal
}
