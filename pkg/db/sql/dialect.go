package sql

import (
	"strconv"
	"strings"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// LockSuffix is appended to a SELECT that must hold the row until commit.
// SQLite has a single writer, so the transaction itself is the lock.
func (d Dialect) LockSuffix() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}
