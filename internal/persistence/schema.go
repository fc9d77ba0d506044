package persistence

import "strings"

var sqliteTypes = strings.NewReplacer(
	"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT",
	"TIMESTAMPTZ", "TIMESTAMP",
	"DOUBLE PRECISION", "REAL",
)

// sqliteStatements rewrites Postgres DDL for SQLite and splits it into
// single statements.
func sqliteStatements(ddl string) []string {
	var statements []string
	for _, stmt := range strings.Split(sqliteTypes.Replace(ddl), ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "--") {
				lines = append(lines, line)
			}
		}
		if s := strings.TrimSpace(strings.Join(lines, "\n")); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}
