package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Subdirectories created for every run.
var RunSubdirs = []string{"content", "memes", "video", "metadata"}

// ErrRunNotFound is wrapped into the error Load returns for unknown ids.
var ErrRunNotFound = errors.New("run not found")

const maxCreateAttempts = 3

// Create registers a new run and its output directories.
func (s *Store) Create(ctx context.Context) (Run, error) {
	ctx = ensureContext(ctx)
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		now := s.now().UTC()
		id := NewID(now)
		stamp := now.Format(timeLayout)
		err := retryOnBusy(ctx, func() error {
			_, err := s.db.ExecContext(ctx,
				"INSERT INTO runs (id, created_at, updated_at, config_json) VALUES (?, ?, ?, '{}')",
				id, stamp, stamp)
			return err
		})
		if err != nil {
			if isConstraintViolation(err) {
				continue
			}
			return Run{}, persistence("create", err)
		}
		dir := s.RunDir(id)
		for _, sub := range RunSubdirs {
			if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
				return Run{}, persistence("create", fmt.Errorf("create run directory: %w", err))
			}
		}
		s.logger.Info("run created",
			logging.String(logging.FieldEventType, "run_created"),
			logging.String(logging.FieldRunID, id),
			logging.String("run_dir", dir))
		return Run{ID: id, CreatedAt: now, UpdatedAt: now, Dir: dir}, nil
	}
	return Run{}, persistence("create", errors.New("could not allocate a unique run id"))
}

// RunDir returns the output directory for id. It does not check existence.
func (s *Store) RunDir(id string) string {
	return filepath.Join(s.root, runsDirName, id)
}

// Exists reports whether id has been created.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if ValidateID(id) != nil {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM runs WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, persistence("exists", err)
	}
	return count > 0, nil
}

// Load returns the snapshot for id. Unknown ids yield a not-found error
// wrapping ErrRunNotFound.
func (s *Store) Load(ctx context.Context, id string) (Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return Snapshot{}, err
	}
	ctx = ensureContext(ctx)
	var snapshot Snapshot
	err := retryOnBusy(ctx, func() error {
		var err error
		snapshot, err = loadSnapshot(ctx, s.db, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return Snapshot{}, notFound("load", id)
		}
		return Snapshot{}, persistence("load", err)
	}
	return snapshot, nil
}

// Save replaces the run's flows, namespaces and config with snapshot in one
// transaction. Every namespace must belong to a flow record in snapshot.
func (s *Store) Save(ctx context.Context, id string, snapshot Snapshot) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := checkSnapshot(snapshot); err != nil {
		return err
	}
	ctx = ensureContext(ctx)
	mu := s.runLock(id)
	mu.Lock()
	defer mu.Unlock()

	cfg := snapshot.Config
	if cfg == nil {
		cfg = map[string]flowconfig.Value{}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRun(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM flows WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("clear flows: %w", err)
		}
		for _, record := range snapshot.Flows {
			if err := upsertFlow(ctx, tx, id, record, snapshot.Namespaces[record.Name]); err != nil {
				return err
			}
		}
		return touchRun(ctx, tx, id, cfg, s.now())
	})
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return notFound("save", id)
		}
		return persistence("save", err)
	}
	return nil
}

func checkSnapshot(snapshot Snapshot) error {
	names := make(map[string]struct{}, len(snapshot.Flows))
	for _, record := range snapshot.Flows {
		if strings.TrimSpace(record.Name) == "" {
			return services.Wrap(services.ErrContract, "runs", "save", "flow name is required", nil)
		}
		if _, dup := names[record.Name]; dup {
			return services.Wrap(services.ErrContract, "runs", "save",
				fmt.Sprintf("flow %s appears more than once", record.Name), nil)
		}
		names[record.Name] = struct{}{}
	}
	for name := range snapshot.Namespaces {
		if _, ok := names[name]; !ok {
			return services.Wrap(services.ErrContract, "runs", "save",
				fmt.Sprintf("namespace %s has no flow record", name), nil)
		}
	}
	return nil
}

// CommitFlow replaces one flow's record and namespace and, when cfg is
// non-nil, the run config, all in one transaction. It returns the snapshot
// as committed.
func (s *Store) CommitFlow(ctx context.Context, id string, record FlowRecord, namespace map[string]json.RawMessage, cfg map[string]flowconfig.Value) (Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return Snapshot{}, err
	}
	if strings.TrimSpace(record.Name) == "" {
		return Snapshot{}, services.Wrap(services.ErrContract, "runs", "commit", "flow name is required", nil)
	}
	ctx = ensureContext(ctx)
	mu := s.runLock(id)
	mu.Lock()
	defer mu.Unlock()

	var snapshot Snapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRun(ctx, tx, id); err != nil {
			return err
		}
		if err := upsertFlow(ctx, tx, id, record, namespace); err != nil {
			return err
		}
		if err := touchRun(ctx, tx, id, cfg, s.now()); err != nil {
			return err
		}
		var err error
		snapshot, err = loadSnapshot(ctx, tx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return Snapshot{}, notFound("commit", id)
		}
		return Snapshot{}, persistence("commit", err)
	}
	s.logger.Debug("flow committed",
		logging.String(logging.FieldEventType, "flow_committed"),
		logging.String(logging.FieldRunID, id),
		logging.String(logging.FieldFlow, record.Name),
		logging.String("status", string(record.Status)),
		logging.String("last_node", record.LastNode),
		logging.Int("keys", len(namespace)))
	return snapshot, nil
}

// List returns every run ordered by creation time, then id.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT id, created_at, updated_at FROM runs ORDER BY created_at, id")
	if err != nil {
		return nil, persistence("list", err)
	}
	defer rows.Close()

	var (
		runs  []Run
		index = make(map[string]int)
	)
	for rows.Next() {
		var id, createdRaw, updatedRaw string
		if err := rows.Scan(&id, &createdRaw, &updatedRaw); err != nil {
			return nil, persistence("list", err)
		}
		index[id] = len(runs)
		runs = append(runs, Run{
			ID:        id,
			CreatedAt: parseTime(createdRaw),
			UpdatedAt: parseTime(updatedRaw),
			Dir:       s.RunDir(id),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list", err)
	}

	flowRows, err := s.db.QueryContext(ctx, "SELECT run_id, "+flowColumns+" FROM flows ORDER BY run_id, seq")
	if err != nil {
		return nil, persistence("list", err)
	}
	defer flowRows.Close()
	for flowRows.Next() {
		var runID string
		record, _, err := scanFlow(flowRows, &runID)
		if err != nil {
			return nil, persistence("list", err)
		}
		if i, ok := index[runID]; ok {
			runs[i].Flows = append(runs[i].Flows, record)
		}
	}
	if err := flowRows.Err(); err != nil {
		return nil, persistence("list", err)
	}
	return runs, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func requireRun(ctx context.Context, q querier, id string) error {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM runs WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if count == 0 {
		return ErrRunNotFound
	}
	return nil
}

func upsertFlow(ctx context.Context, tx *sql.Tx, id string, record FlowRecord, namespace map[string]json.RawMessage) error {
	if namespace == nil {
		namespace = map[string]json.RawMessage{}
	}
	nsJSON, err := json.Marshal(namespace)
	if err != nil {
		return fmt.Errorf("encode namespace %s: %w", record.Name, err)
	}
	var (
		finished     sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
	)
	if record.FinishedAt != nil {
		finished = sql.NullString{String: record.FinishedAt.UTC().Format(timeLayout), Valid: true}
	}
	if record.Error != nil {
		errorKind = sql.NullString{String: record.Error.Kind, Valid: true}
		errorMessage = sql.NullString{String: record.Error.Message, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO flows (run_id, name, seq, status, started_at, finished_at, last_node, error_kind, error_message, namespace_json)
VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM flows WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, name) DO UPDATE SET
    status = excluded.status,
    started_at = excluded.started_at,
    finished_at = excluded.finished_at,
    last_node = excluded.last_node,
    error_kind = excluded.error_kind,
    error_message = excluded.error_message,
    namespace_json = excluded.namespace_json`,
		id, record.Name, id, string(record.Status), record.StartedAt.UTC().Format(timeLayout),
		finished, nullString(record.LastNode), errorKind, errorMessage, string(nsJSON))
	if err != nil {
		return fmt.Errorf("write flow %s: %w", record.Name, err)
	}
	return nil
}

func touchRun(ctx context.Context, tx *sql.Tx, id string, cfg map[string]flowconfig.Value, now time.Time) error {
	stamp := now.UTC().Format(timeLayout)
	if cfg == nil {
		_, err := tx.ExecContext(ctx, "UPDATE runs SET updated_at = ? WHERE id = ?", stamp, id)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		return nil
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE runs SET updated_at = ?, config_json = ? WHERE id = ?", stamp, string(cfgJSON), id); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

const flowColumns = "name, status, started_at, finished_at, last_node, error_kind, error_message, namespace_json"

func scanFlow(scanner interface{ Scan(dest ...any) error }, prefix ...any) (FlowRecord, map[string]json.RawMessage, error) {
	var (
		record       FlowRecord
		status       string
		startedRaw   string
		finishedRaw  sql.NullString
		lastNode     sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		nsJSON       string
	)
	dest := append(prefix, &record.Name, &status, &startedRaw, &finishedRaw, &lastNode, &errorKind, &errorMessage, &nsJSON)
	if err := scanner.Scan(dest...); err != nil {
		return FlowRecord{}, nil, err
	}
	record.Status = FlowStatus(status)
	record.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid && finishedRaw.String != "" {
		finished := parseTime(finishedRaw.String)
		record.FinishedAt = &finished
	}
	record.LastNode = lastNode.String
	if errorKind.Valid || errorMessage.Valid {
		record.Error = &FlowError{Kind: errorKind.String, Message: errorMessage.String}
	}
	namespace := map[string]json.RawMessage{}
	if strings.TrimSpace(nsJSON) != "" {
		if err := json.Unmarshal([]byte(nsJSON), &namespace); err != nil {
			return FlowRecord{}, nil, fmt.Errorf("decode namespace %s: %w", record.Name, err)
		}
	}
	return record, namespace, nil
}

func loadSnapshot(ctx context.Context, q querier, id string) (Snapshot, error) {
	var createdRaw, cfgJSON string
	err := q.QueryRowContext(ctx, "SELECT created_at, config_json FROM runs WHERE id = ?", id).Scan(&createdRaw, &cfgJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrRunNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read run: %w", err)
	}
	snapshot := Snapshot{
		RunID:      id,
		CreatedAt:  parseTime(createdRaw),
		Flows:      []FlowRecord{},
		Config:     map[string]flowconfig.Value{},
		Namespaces: map[string]map[string]json.RawMessage{},
	}
	if strings.TrimSpace(cfgJSON) != "" {
		if err := json.Unmarshal([]byte(cfgJSON), &snapshot.Config); err != nil {
			return Snapshot{}, fmt.Errorf("decode run config: %w", err)
		}
	}

	rows, err := q.QueryContext(ctx, "SELECT "+flowColumns+" FROM flows WHERE run_id = ? ORDER BY seq", id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read flows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		record, namespace, err := scanFlow(rows)
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Flows = append(snapshot.Flows, record)
		snapshot.Namespaces[record.Name] = namespace
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read flows: %w", err)
	}
	return snapshot, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(op, id string) error {
	return services.Wrap(services.ErrNotFound, "runs", op, fmt.Sprintf("run %q does not exist", id), ErrRunNotFound)
}

func persistence(op string, err error) error {
	return services.Wrap(services.ErrPersistence, "runs", op, "run state could not be read or written", err)
}
