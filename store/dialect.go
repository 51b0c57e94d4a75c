package store

import (
	"fmt"
	"strings"
	"time"
)

// Dialect covers the SQL literal differences between drivers.
type Dialect interface {
	Placeholder(n int) string
	Now() string
}

type sqliteDialect struct{}

func (sqliteDialect) Placeholder(_ int) string { return "?" }
func (sqliteDialect) Now() string              { return "datetime('now','localtime')" }

type postgresDialect struct{}

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) Now() string              { return "NOW()" }

const sqliteTimeLayout = "2006-01-02 15:04:05"

// timeArg formats t to compare against columns written with Now().
func (db *DB) timeArg(t time.Time) any {
	if db.driver == "sqlite" {
		return t.Local().Format(sqliteTimeLayout)
	}
	return t
}

// parseTime converts a scanned timestamp. SQLite yields strings, Postgres
// yields time.Time.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return parseTime(string(t))
	case string:
		if t == "" {
			return time.Time{}
		}
		if parsed, err := time.ParseInLocation(sqliteTimeLayout, t, time.Local); err == nil {
			return parsed
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			"2006-01-02 15:04:05-07:00",
			"2006-01-02 15:04:05.999999-07:00",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func parseTimePtr(v any) *time.Time {
	t := parseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(postgresDialect{}.Placeholder(n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
