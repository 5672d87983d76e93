package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"audiogen/internal/api"
)

// Entry is an indexed result plus what the client knows about it locally.
type Entry struct {
	Item           api.CompletedItem
	SeenAt         time.Time
	DownloadedPath string
}

// Query filters List. A zero Query lists everything, newest first.
type Query struct {
	Model string
	Limit int
}

const entryColumns = "audio_ref, prompt, model, parameters_json, created_unix, seen_unix, downloaded_path"

// Record upserts items and returns how many were new to the index.
func (s *Store) Record(ctx context.Context, items []api.CompletedItem, seen time.Time) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	added := 0
	err := retryOnBusy(ctx, func() error {
		added = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		for _, item := range items {
			ref := strings.TrimSpace(item.AudioRef)
			if ref == "" {
				continue
			}
			params, err := json.Marshal(item.Parameters)
			if err != nil {
				return fmt.Errorf("marshal parameters for %s: %w", ref, err)
			}
			var exists int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM results WHERE audio_ref = ?", ref).Scan(&exists); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO results (audio_ref, prompt, model, parameters_json, created_unix, seen_unix)
                 VALUES (?, ?, ?, ?, ?, ?)
                 ON CONFLICT(audio_ref) DO UPDATE SET
                     prompt = excluded.prompt,
                     model = excluded.model,
                     parameters_json = excluded.parameters_json,
                     created_unix = COALESCE(excluded.created_unix, results.created_unix),
                     seen_unix = excluded.seen_unix`,
				ref,
				item.Prompt,
				nullableString(item.Model),
				string(params),
				nullableUnix(item.CreatedAt),
				seen.UTC().UnixNano(),
			); err != nil {
				return fmt.Errorf("upsert %s: %w", ref, err)
			}
			if exists == 0 {
				added++
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("record results: %w", err)
	}
	return added, nil
}

// MarkDownloaded remembers where the audio for ref was saved.
func (s *Store) MarkDownloaded(ctx context.Context, ref, path string) error {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "UPDATE results SET downloaded_path = ? WHERE audio_ref = ?", path, ref)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("mark downloaded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark downloaded: %s is not in the library", ref)
	}
	return nil
}

// List returns indexed results, newest first. Results without a creation
// time sort last.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM results"
	var args []any
	if model := strings.TrimSpace(q.Model); model != "" {
		query += " WHERE lower(model) = ?"
		args = append(args, strings.ToLower(model))
	}
	query += " ORDER BY created_unix IS NULL, created_unix DESC, seen_unix DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return entries, nil
}

// Count returns the number of indexed results.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM results").Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		ref        string
		prompt     string
		model      sql.NullString
		paramsJSON sql.NullString
		created    sql.NullInt64
		seen       sql.NullInt64
		downloaded sql.NullString
	)
	if err := scanner.Scan(&ref, &prompt, &model, &paramsJSON, &created, &seen, &downloaded); err != nil {
		return Entry{}, err
	}

	var params api.Params
	if paramsJSON.Valid && paramsJSON.String != "" {
		if err := json.Unmarshal([]byte(paramsJSON.String), &params); err != nil {
			return Entry{}, fmt.Errorf("decode parameters for %s: %w", ref, err)
		}
	}
	return Entry{
		Item: api.CompletedItem{
			Prompt:     prompt,
			Model:      model.String,
			Parameters: params,
			AudioRef:   ref,
			CreatedAt:  fromUnix(created),
		},
		SeenAt:         fromUnix(seen),
		DownloadedPath: downloaded.String,
	}, nil
}
