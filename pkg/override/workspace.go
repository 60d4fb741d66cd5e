// Package override merges external tabular corrections into an
// already-materialized datapackage. Matching and updating run inside an
// in-memory SQLite scratch workspace opened per logical merge step; the
// resource files are rewritten in place and the descriptor is never touched.
package override

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	// SQLite driver for the scratch workspace.
	_ "modernc.org/sqlite"
)

// workspace is a per-merge-step relational scratch area. It is never shared
// across steps, so no locking discipline is required.
type workspace struct {
	db *sql.DB
}

func openWorkspace() (*workspace, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening scratch workspace: %w", err)
	}
	return &workspace{db: db}, nil
}

func (w *workspace) Close() error {
	return w.db.Close()
}

// quoteIdent quotes an SQL identifier; override data is external, so column
// names cannot be trusted to be bare words.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// importTable creates an all-TEXT table from a header and rows. Row order is
// preserved through the implicit rowid.
func (w *workspace) importTable(table string, header []string, rows [][]string) error {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = quoteIdent(h) + " TEXT"
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("creating scratch table %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), placeholders)
	stmt, err := w.db.Prepare(insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(header))
		for i := range header {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = ""
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("loading scratch table %s: %w", table, err)
		}
	}
	return nil
}

// updateMatching sets the given columns of target from source where the key
// column matches, and returns the number of updated rows.
func (w *workspace) updateMatching(target, source, key string, columns []string) (int, error) {
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = src.%s", quoteIdent(col), quoteIdent(col))
	}
	stmt := fmt.Sprintf(
		"UPDATE %s SET %s FROM %s AS src WHERE %s.%s = src.%s",
		quoteIdent(target), strings.Join(sets, ", "), quoteIdent(source),
		quoteIdent(target), quoteIdent(key), quoteIdent(key),
	)
	res, err := w.db.Exec(stmt)
	if err != nil {
		return 0, fmt.Errorf("merging into %s: %w", target, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// applySeries sets one column of target positionally: row i of the table (in
// import order) receives values[i]. Timestamps play no part in the match.
func (w *workspace) applySeries(target, column string, values []string) error {
	if _, err := w.db.Exec("DROP TABLE IF EXISTS series_data"); err != nil {
		return err
	}
	if _, err := w.db.Exec("CREATE TABLE series_data (idx INTEGER, val TEXT)"); err != nil {
		return err
	}
	stmt, err := w.db.Prepare("INSERT INTO series_data VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, v := range values {
		if _, err := stmt.Exec(i, v); err != nil {
			return err
		}
	}

	update := fmt.Sprintf(
		"UPDATE %s SET %s = (SELECT val FROM series_data WHERE idx = %s.rowid - 1)",
		quoteIdent(target), quoteIdent(column), quoteIdent(target),
	)
	_, err = w.db.Exec(update)
	return err
}

// export reads the table back in import order and rewrites the file at path
// with the given header.
func (w *workspace) export(table string, header []string, path string) error {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = quoteIdent(h)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), quoteIdent(table))
	rows, err := w.db.Query(query)
	if err != nil {
		return fmt.Errorf("exporting %s: %w", table, err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	cw.Comma = ';'

	if err := cw.Write(header); err != nil {
		f.Close()
		return err
	}

	record := make([]string, len(header))
	scan := make([]any, len(header))
	for rows.Next() {
		for i := range record {
			scan[i] = &record[i]
		}
		if err := rows.Scan(scan...); err != nil {
			f.Close()
			return err
		}
		if err := cw.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	if err := rows.Err(); err != nil {
		f.Close()
		return err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readDelimited reads a ';'-delimited file into a header and data rows.
func readDelimited(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
