package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/metrics"
)

// Database wraps the GORM DB handle and implements Repository and RunStore.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
	now  func() time.Time
}

var (
	_ Repository = (*Database)(nil)
	_ RunStore   = (*Database)(nil)
)

// listOrder sorts most recently touched decisions first with a stable tiebreak.
const listOrder = "updated_at DESC, created_at DESC, id ASC"

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool, opts ...Option) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&DecisionRecord{}, &RunRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	o := buildOptions(opts)
	return &Database{gorm: db, now: o.now}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts a new decision with a fresh id and timestamps.
func (d *Database) Create(ctx context.Context, partial matrix.Decision) (out matrix.Decision, err error) {
	defer func() { metrics.ObserveStore("create", err) }()
	dec := prepareCreate(partial, d.now())
	rec, err := recordFromDecision(dec)
	if err != nil {
		return matrix.Decision{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.WithContext(ctx).Create(rec).Error; err != nil {
		return matrix.Decision{}, fmt.Errorf("create decision: %w", err)
	}
	return rec.decision()
}

// Get loads a decision by id.
func (d *Database) Get(ctx context.Context, id string) (out matrix.Decision, err error) {
	defer func() { metrics.ObserveStore("get", ignoreNotFound(err)) }()
	rec, err := d.find(d.gorm.WithContext(ctx), id)
	if err != nil {
		return matrix.Decision{}, err
	}
	return rec.decision()
}

func (d *Database) find(tx *gorm.DB, id string) (*DecisionRecord, error) {
	var rec DecisionRecord
	if err := tx.Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("decision %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load decision %s: %w", id, err)
	}
	return &rec, nil
}

// List returns all decisions, most recently updated first.
func (d *Database) List(ctx context.Context) (out []matrix.Decision, err error) {
	defer func() { metrics.ObserveStore("list", err) }()
	return d.query(d.gorm.WithContext(ctx).Order(listOrder))
}

// Search matches titles case-insensitively by substring.
func (d *Database) Search(ctx context.Context, query string) (out []matrix.Decision, err error) {
	defer func() { metrics.ObserveStore("search", err) }()
	q := strings.ToLower(strings.TrimSpace(query))
	tx := d.gorm.WithContext(ctx).Order(listOrder)
	if q != "" {
		tx = tx.Where("INSTR(title_normalized, ?) > 0", q)
	}
	return d.query(tx)
}

func (d *Database) query(tx *gorm.DB) ([]matrix.Decision, error) {
	var rows []DecisionRecord
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	out := make([]matrix.Decision, 0, len(rows))
	for i := range rows {
		dec, err := rows[i].decision()
		if err != nil {
			return nil, err
		}
		out = append(out, dec)
	}
	return out, nil
}

// Update shallow-merges the patch and refreshes UpdatedAt.
func (d *Database) Update(ctx context.Context, id string, patch Patch) (out matrix.Decision, err error) {
	defer func() { metrics.ObserveStore("update", ignoreNotFound(err)) }()
	d.mu.Lock()
	defer d.mu.Unlock()
	err = d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := d.find(tx, id)
		if err != nil {
			return err
		}
		current, err := rec.decision()
		if err != nil {
			return err
		}
		patch.Apply(&current)
		current.UpdatedAt = d.now()
		next, err := recordFromDecision(current)
		if err != nil {
			return err
		}
		if err := tx.Save(next).Error; err != nil {
			return fmt.Errorf("save decision %s: %w", id, err)
		}
		out, err = next.decision()
		return err
	})
	if err != nil {
		return matrix.Decision{}, err
	}
	return out, nil
}

// Delete removes a decision. Missing ids are not an error.
func (d *Database) Delete(ctx context.Context, id string) (err error) {
	defer func() { metrics.ObserveStore("delete", err) }()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.WithContext(ctx).Where("id = ?", id).Delete(&DecisionRecord{}).Error; err != nil {
		return fmt.Errorf("delete decision %s: %w", id, err)
	}
	return nil
}

// ExportAll returns every decision in list order.
func (d *Database) ExportAll(ctx context.Context) (out []matrix.Decision, err error) {
	defer func() { metrics.ObserveStore("export", err) }()
	return d.query(d.gorm.WithContext(ctx).Order(listOrder))
}

// ImportAll writes decisions verbatim, preserving ids and timestamps.
func (d *Database) ImportAll(ctx context.Context, decisions []matrix.Decision, mode ImportMode) (err error) {
	defer func() { metrics.ObserveStore("import", err) }()
	if mode != ModeReplace && mode != ModeMerge {
		return &matrix.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown import mode %q", mode)}
	}
	now := d.now()
	records := make([]*DecisionRecord, 0, len(decisions))
	for _, in := range decisions {
		dec, err := prepareImport(in, now)
		if err != nil {
			return err
		}
		rec, err := recordFromDecision(dec)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if mode == ModeReplace {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&DecisionRecord{}).Error; err != nil {
				return fmt.Errorf("clear decisions: %w", err)
			}
		}
		if len(records) == 0 {
			return nil
		}
		const batchSize = 100
		for start := 0; start < len(records); start += batchSize {
			end := start + batchSize
			if end > len(records) {
				end = len(records)
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(records[start:end]).Error
			if err != nil {
				return fmt.Errorf("import decisions: %w", err)
			}
		}
		return nil
	})
}

// SaveRun inserts or updates an evaluation run.
func (d *Database) SaveRun(ctx context.Context, run EvaluationRun) (err error) {
	defer func() { metrics.ObserveStore("save_run", err) }()
	rec, err := runRecordFrom(run)
	if err != nil {
		return err
	}
	rec.UpdatedAt = d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "total", "processed", "failed", "errors_json", "finished_at", "updated_at"}),
	}).Create(rec).Error
}

// GetRun loads an evaluation run.
func (d *Database) GetRun(ctx context.Context, id string) (out EvaluationRun, err error) {
	defer func() { metrics.ObserveStore("get_run", ignoreNotFound(err)) }()
	var rec RunRecord
	if err := d.gorm.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EvaluationRun{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return EvaluationRun{}, err
	}
	return rec.run()
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"UPDATE decisions SET title_normalized = LOWER(title) WHERE title IS NOT NULL AND (title_normalized IS NULL OR title_normalized = '')",
		"CREATE INDEX IF NOT EXISTS idx_decisions_updated_created ON decisions(updated_at DESC, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_evaluation_runs_decision_status ON evaluation_runs(decision_id, status)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
