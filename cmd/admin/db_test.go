package main

import (
	"database/sql"
	"path/filepath"
	"testing"

	"digstream.live/internal/persistence/indexdb"
	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/tuning"
	"digstream.live/internal/sim/world"
)

func seedIndex(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertCatalogs("", catalogs.Defaults(), tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	for _, e := range []world.AuditEntry{
		{Tick: 1, ID: "1", Kind: protocol.EventAccepted, Actor: "alice", Token: "tnt", Handoff: true},
		{Tick: 2, ID: "2", Kind: protocol.EventScore, Actor: "alice", Block: "diamond_ore", Points: 16, Score: 16},
		{Tick: 3, ID: "3", Kind: protocol.EventAccepted, Actor: "bob", Token: "fast", Previous: "alice", Handoff: true},
		{Tick: 4, ID: "4", Kind: protocol.EventScore, Actor: "bob", Block: "stone", Points: 1, Score: 1},
		{Tick: 5, ID: "5", Kind: protocol.EventAccepted, Actor: "bob", Token: "big"},
	} {
		_ = idx.WriteAudit(e)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQueryTop(t *testing.T) {
	db := seedIndex(t)
	rows, err := queryTop(db, 10)
	if err != nil {
		t.Fatalf("queryTop: %v", err)
	}
	if len(rows) != 2 || rows[0].Player != "alice" || rows[0].Score != 16 || rows[1].Player != "bob" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestQueryHandoffs(t *testing.T) {
	db := seedIndex(t)
	rows, err := queryHandoffs(db, "", 10)
	if err != nil {
		t.Fatalf("queryHandoffs: %v", err)
	}
	if len(rows) != 2 || rows[0].Player != "bob" || rows[0].Previous != "alice" {
		t.Fatalf("rows=%+v", rows)
	}
	rows, err = queryHandoffs(db, "alice", 1)
	if err != nil {
		t.Fatalf("queryHandoffs: %v", err)
	}
	if len(rows) != 1 || rows[0].Tick != 3 {
		t.Fatalf("filtered rows=%+v", rows)
	}
}

func TestQueryCatalogs(t *testing.T) {
	db := seedIndex(t)
	rows, err := queryCatalogs(db)
	if err != nil {
		t.Fatalf("queryCatalogs: %v", err)
	}
	names := map[string]bool{}
	for _, r := range rows {
		names[r.Name] = true
	}
	for _, want := range []string{"aliases", "blocks_ranked", "tuning"} {
		if !names[want] {
			t.Fatalf("missing catalog %q in %+v", want, rows)
		}
	}
}

func TestAuditFilter(t *testing.T) {
	f := auditFilter{Actor: "alice", Kind: protocol.EventScore, SinceTick: 2, ToTick: 4}
	cases := []struct {
		e    world.AuditEntry
		want bool
	}{
		{world.AuditEntry{Tick: 2, Actor: "alice", Kind: protocol.EventScore}, true},
		{world.AuditEntry{Tick: 1, Actor: "alice", Kind: protocol.EventScore}, false},
		{world.AuditEntry{Tick: 5, Actor: "alice", Kind: protocol.EventScore}, false},
		{world.AuditEntry{Tick: 3, Actor: "bob", Kind: protocol.EventScore}, false},
		{world.AuditEntry{Tick: 3, Actor: "alice", Kind: protocol.EventAccepted}, false},
	}
	for _, tc := range cases {
		if got := f.match(tc.e); got != tc.want {
			t.Fatalf("match(%+v)=%v want=%v", tc.e, got, tc.want)
		}
	}
}
