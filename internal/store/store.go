// Package store persists offers behind an idempotent, patch-oriented API.
// Rows are addressed either by the internally generated id or resolved
// through the natural key pair (id_offre, url), so re-importing the same
// page any number of times still yields a single row.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jobveille/internal/offer"
)

// ErrNotFound is returned when an offer id does not resolve to a row.
var ErrNotFound = errors.New("offer not found")

// Backends supported by Open. MySQL serves the shared remote table, SQLite
// the local embedded one; upsert semantics are identical on both.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Patch is a partial offer row keyed by column name. Columns absent from a
// patch are never touched: left at their current value on update, unset on
// insert.
type Patch map[string]any

// Config selects and configures the storage backend.
type Config struct {
	Backend string `mapstructure:"backend"`
	// DSN is the MySQL DSN or the SQLite file path (":memory:" works).
	DSN string `mapstructure:"dsn"`
}

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// intColumns and floatColumns drive defensive numeric coercion.
var intColumns = map[string]bool{
	offer.ColScoreLoc:    true,
	offer.ColScoreSalary: true,
	offer.ColScoreCult:   true,
	offer.ColScoreQual:   true,
	offer.ColScoreOpt1:   true,
	offer.ColScoreOpt2:   true,
	offer.ColScoreOpt3:   true,
	offer.ColScoreOpt4:   true,
}

var floatColumns = map[string]bool{
	offer.ColScoreTotal: true,
}

var knownColumns = map[string]bool{
	offer.ColID:         true,
	offer.ColOfferID:    true,
	offer.ColURL:        true,
	offer.ColStatus:     true,
	offer.ColSource:     true,
	offer.ColCreatedVia: true,
	offer.ColTitle:      true,
	offer.ColCompany:    true,
	offer.ColCity:       true,
	offer.ColDepartment: true,
	offer.ColSalary:     true,
	offer.ColPostedAt:   true,
	offer.ColFullText:   true,
	offer.ColSummary:    true,
	offer.ColScoreLoc:   true, offer.ColScoreSalary: true,
	offer.ColScoreCult: true, offer.ColScoreQual: true,
	offer.ColScoreOpt1: true, offer.ColScoreOpt2: true,
	offer.ColScoreOpt3: true, offer.ColScoreOpt4: true,
	offer.ColScoreTotal: true,
	offer.ColVerdict:    true,
}

// Open connects to the configured backend and runs the schema migration.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	var dial gorm.Dialector
	switch cfg.Backend {
	case "", BackendSQLite:
		dial = sqlite.Open(cfg.DSN)
	case BackendMySQL:
		dial = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	return New(db, logger)
}

// New wraps an existing gorm connection and migrates the offer table.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&offer.Offer{}); err != nil {
		return nil, fmt.Errorf("migrate offer table: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection pool. Long-lived callers, the
// cron daemon in particular, must close each store they open or the pool's
// idle connections accumulate for the life of the process.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Upsert inserts or updates a row from the patch. Resolution order:
// an explicit id wins over everything (reconciliation from an authoritative
// copy), then a non-blank id_offre match, then a non-blank url match, then a
// fresh insert under a generated id.
func (s *Store) Upsert(ctx context.Context, patch Patch) (*offer.Offer, error) {
	p, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	if id := strings.TrimSpace(toString(p[offer.ColID])); id != "" {
		exists, err := s.exists(ctx, offer.ColID, id)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := s.applyUpdate(ctx, id, p); err != nil {
				return nil, err
			}
		} else if err := s.insert(ctx, id, p); err != nil {
			return nil, err
		}
		return s.GetByID(ctx, id)
	}

	if oid := strings.TrimSpace(toString(p[offer.ColOfferID])); oid != "" {
		id, err := s.findID(ctx, offer.ColOfferID, oid)
		if err != nil {
			return nil, err
		}
		if id != "" {
			if err := s.applyUpdate(ctx, id, p); err != nil {
				return nil, err
			}
			return s.GetByID(ctx, id)
		}
	}

	if url := strings.TrimSpace(toString(p[offer.ColURL])); url != "" {
		id, err := s.findID(ctx, offer.ColURL, url)
		if err != nil {
			return nil, err
		}
		if id != "" {
			if err := s.applyUpdate(ctx, id, p); err != nil {
				return nil, err
			}
			return s.GetByID(ctx, id)
		}
	}

	id := uuid.NewString()
	if err := s.insert(ctx, id, p); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// UpdateByID applies a strictly partial update: columns absent from the
// patch keep their current value, they are never nulled.
func (s *Store) UpdateByID(ctx context.Context, id string, patch Patch) error {
	p, err := normalizePatch(patch)
	if err != nil {
		return err
	}

	exists, err := s.exists(ctx, offer.ColID, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("update offer %s: %w", id, ErrNotFound)
	}

	return s.applyUpdate(ctx, id, p)
}

func (s *Store) GetByID(ctx context.Context, id string) (*offer.Offer, error) {
	rows, err := s.query(ctx, map[string]any{offer.ColID: id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	return rows[0], nil
}

func (s *Store) GetByStatus(ctx context.Context, status offer.Status) ([]*offer.Offer, error) {
	return s.query(ctx, map[string]any{offer.ColStatus: string(status)})
}

func (s *Store) GetBySource(ctx context.Context, source string) ([]*offer.Offer, error) {
	return s.query(ctx, map[string]any{offer.ColSource: source})
}

func (s *Store) GetAll(ctx context.Context) ([]*offer.Offer, error) {
	return s.query(ctx, nil)
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where(map[string]any{offer.ColID: id}).Delete(&offer.Offer{})
	if res.Error != nil {
		return fmt.Errorf("delete offer %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete offer %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, id string, p Patch) error {
	row := clonePatch(p)
	row[offer.ColID] = id
	if err := s.db.WithContext(ctx).Model(&offer.Offer{}).Create(map[string]any(row)).Error; err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	s.logger.Debug("offer inserted", zap.String("id", id))
	return nil
}

func (s *Store) applyUpdate(ctx context.Context, id string, p Patch) error {
	upd := clonePatch(p)
	delete(upd, offer.ColID)
	if len(upd) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&offer.Offer{}).
		Where(map[string]any{offer.ColID: id}).
		Updates(map[string]any(upd))
	if res.Error != nil {
		return fmt.Errorf("update offer %s: %w", id, res.Error)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, column, value string) (bool, error) {
	id, err := s.findID(ctx, column, value)
	return id != "", err
}

func (s *Store) findID(ctx context.Context, column, value string) (string, error) {
	var rows []map[string]any
	err := s.db.WithContext(ctx).Model(&offer.Offer{}).
		Select(offer.ColID).
		Where(map[string]any{column: value}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", fmt.Errorf("lookup by %s: %w", column, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return toString(rows[0][offer.ColID]), nil
}

// query reads raw rows and rebuilds offers column by column, coercing
// numeric values that may have been stored as text.
func (s *Store) query(ctx context.Context, where map[string]any) ([]*offer.Offer, error) {
	q := s.db.WithContext(ctx).Model(&offer.Offer{})
	if len(where) > 0 {
		q = q.Where(where)
	}
	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	offers := make([]*offer.Offer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, fromRow(row))
	}
	return offers, nil
}

func fromRow(row map[string]any) *offer.Offer {
	return &offer.Offer{
		ID:         toString(row[offer.ColID]),
		OfferID:    toString(row[offer.ColOfferID]),
		URL:        toString(row[offer.ColURL]),
		Status:     offer.Status(toString(row[offer.ColStatus])),
		Source:     toString(row[offer.ColSource]),
		CreatedVia: toString(row[offer.ColCreatedVia]),
		Title:      toString(row[offer.ColTitle]),
		Company:    toString(row[offer.ColCompany]),
		City:       toString(row[offer.ColCity]),
		Department: toString(row[offer.ColDepartment]),
		Salary:     toString(row[offer.ColSalary]),
		PostedAt:   toString(row[offer.ColPostedAt]),
		FullText:   toString(row[offer.ColFullText]),
		Summary:    toString(row[offer.ColSummary]),

		ScoreLocation: coerceInt(row[offer.ColScoreLoc]),
		ScoreSalary:   coerceInt(row[offer.ColScoreSalary]),
		ScoreCulture:  coerceInt(row[offer.ColScoreCult]),
		ScoreQuality:  coerceInt(row[offer.ColScoreQual]),
		ScoreOpt1:     coerceInt(row[offer.ColScoreOpt1]),
		ScoreOpt2:     coerceInt(row[offer.ColScoreOpt2]),
		ScoreOpt3:     coerceInt(row[offer.ColScoreOpt3]),
		ScoreOpt4:     coerceInt(row[offer.ColScoreOpt4]),
		ScoreTotal:    coerceFloat(row[offer.ColScoreTotal]),
		Verdict:       toString(row[offer.ColVerdict]),
	}
}

func normalizePatch(patch Patch) (Patch, error) {
	p := make(Patch, len(patch))
	for k, v := range patch {
		if !knownColumns[k] {
			return nil, fmt.Errorf("unknown offer column %q", k)
		}
		switch {
		case intColumns[k]:
			p[k] = coerceInt(v)
		case floatColumns[k]:
			p[k] = coerceFloat(v)
		default:
			p[k] = toString(v)
		}
	}
	return p, nil
}

func clonePatch(p Patch) Patch {
	c := make(Patch, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
