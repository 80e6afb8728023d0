package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"digstream.live/internal/protocol"
)

type scoreRow struct {
	Player   string `json:"player"`
	Score    int    `json:"score"`
	Blocks   int    `json:"blocks"`
	Handoffs int    `json:"handoffs"`
	LastTick int64  `json:"last_tick"`
}

type handoffRow struct {
	Tick     int64  `json:"tick"`
	TimeMS   int64  `json:"time_ms"`
	Player   string `json:"player"`
	Previous string `json:"previous,omitempty"`
	Token    string `json:"token"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	streamID := fs.String("stream", "main", "stream id (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	player := fs.String("player", "", "player filter (handoffs)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "top"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "streams", *streamID, "index", "stream.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	var out []any
	switch q {
	case "top":
		rows, err := queryTop(db, *limit)
		exitOnErr(err)
		for _, r := range rows {
			out = append(out, r)
		}
	case "handoffs":
		rows, err := queryHandoffs(db, strings.TrimSpace(*player), *limit)
		exitOnErr(err)
		for _, r := range rows {
			out = append(out, r)
		}
	case "catalogs":
		rows, err := queryCatalogs(db)
		exitOnErr(err)
		for _, r := range rows {
			out = append(out, r)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-stream ID|-db PATH] [-player P] [-limit N] top|handoffs|catalogs")
		os.Exit(2)
	}
	for _, r := range out {
		printJSON(r)
	}
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func queryTop(db *sql.DB, limit int) ([]scoreRow, error) {
	rows, err := db.Query(`SELECT player,score,blocks,handoffs,last_tick FROM scores ORDER BY score DESC, last_tick ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []scoreRow
	for rows.Next() {
		var r scoreRow
		if err := rows.Scan(&r.Player, &r.Score, &r.Blocks, &r.Handoffs, &r.LastTick); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// queryHandoffs lists possession changes, newest first.
func queryHandoffs(db *sql.DB, player string, limit int) ([]handoffRow, error) {
	query := `SELECT tick,time_ms,actor,COALESCE(previous,''),COALESCE(token,'') FROM audits WHERE kind=? AND handoff=1`
	args := []any{protocol.EventAccepted}
	if player != "" {
		query += ` AND (actor=? OR previous=?)`
		args = append(args, player, player)
	}
	query += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []handoffRow
	for rows.Next() {
		var r handoffRow
		if err := rows.Scan(&r.Tick, &r.TimeMS, &r.Player, &r.Previous, &r.Token); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryCatalogs(db *sql.DB) ([]catalogRow, error) {
	rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalogRow
	for rows.Next() {
		var r catalogRow
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
