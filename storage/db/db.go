// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db keeps a history of report runs in a SQL database, so
// timing series from different runs can be compared later.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// DB is a history database. It's safe for concurrent use by multiple
// goroutines.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertRun   *sql.Stmt
	insertPoint *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to configure its connections.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	Created BIGINT NOT NULL,
	ChartPath VARCHAR(1024),
	GIFPath VARCHAR(1024),
	Frames INT NOT NULL
);
CREATE TABLE IF NOT EXISTS RunPoints (
	RunID BIGINT UNSIGNED,
	Seq INT NOT NULL,
	Samples BIGINT NOT NULL,
	Seconds DOUBLE NOT NULL,
	PRIMARY KEY (RunID, Seq),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %v", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	var err error
	db.insertRun, err = db.sql.Prepare("INSERT INTO Runs(Created, ChartPath, GIFPath, Frames) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	db.insertPoint, err = db.sql.Prepare("INSERT INTO RunPoints(RunID, Seq, Samples, Seconds) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	return nil
}

// now is a hook for testing
var now = time.Now

// A Run is one report run and the series it plotted.
type Run struct {
	// ID is assigned by RecordRun.
	ID      int64
	Created time.Time

	// ChartPath and GIFPath are the artifacts the run wrote. Either
	// may be empty if that stage was skipped.
	ChartPath string
	GIFPath   string
	// Frames is the number of frames in the animation.
	Frames int

	Samples []int
	Seconds []float64
}

// RecordRun stores r and its points in a single transaction and sets
// r.ID and r.Created.
func (db *DB) RecordRun(ctx context.Context, r *Run) (err error) {
	if len(r.Samples) != len(r.Seconds) {
		return fmt.Errorf("run has %d samples and %d timings", len(r.Samples), len(r.Seconds))
	}
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	created := now().Truncate(time.Second)
	res, err := tx.StmtContext(ctx, db.insertRun).ExecContext(ctx, created.Unix(), r.ChartPath, r.GIFPath, r.Frames)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	insert := tx.StmtContext(ctx, db.insertPoint)
	for i, n := range r.Samples {
		if _, err := insert.ExecContext(ctx, id, i, n, r.Seconds[i]); err != nil {
			return err
		}
	}
	r.ID = id
	r.Created = created
	return nil
}

// Runs returns up to limit runs, newest first, with their points. A
// limit <= 0 returns every run.
func (db *DB) Runs(ctx context.Context, limit int) ([]*Run, error) {
	q := "SELECT RunID, Created, ChartPath, GIFPath, Frames FROM Runs ORDER BY RunID DESC"
	var args []interface{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var runs []*Run
	for rows.Next() {
		r := new(Run)
		var created int64
		var chart, gif sql.NullString
		if err := rows.Scan(&r.ID, &created, &chart, &gif, &r.Frames); err != nil {
			rows.Close()
			return nil, err
		}
		r.Created = time.Unix(created, 0)
		r.ChartPath, r.GIFPath = chart.String, gif.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Points are loaded after the run query is closed; sqlite3
	// connections are limited to one.
	for _, r := range runs {
		if err := db.loadPoints(ctx, r); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (db *DB) loadPoints(ctx context.Context, r *Run) error {
	rows, err := db.sql.QueryContext(ctx, "SELECT Samples, Seconds FROM RunPoints WHERE RunID = ? ORDER BY Seq", r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var n int
		var sec float64
		if err := rows.Scan(&n, &sec); err != nil {
			return err
		}
		r.Samples = append(r.Samples, n)
		r.Seconds = append(r.Seconds, sec)
	}
	return rows.Err()
}

// ErrNoRuns is returned by LatestRun when the history is empty.
var ErrNoRuns = errors.New("no runs recorded")

// LatestRun returns the most recently recorded run.
func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := db.Runs(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return runs[0], nil
}

// CountRuns returns the number of runs stored in the database.
func (db *DB) CountRuns() (int, error) {
	var n int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM Runs").Scan(&n)
	return n, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	if err := db.insertRun.Close(); err != nil {
		return err
	}
	if err := db.insertPoint.Close(); err != nil {
		return err
	}
	return db.sql.Close()
}
