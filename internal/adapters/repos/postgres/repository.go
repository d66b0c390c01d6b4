// Package postgres stores registrations in a PostgreSQL table whose identity
// column supplies the id sequence.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const registrationsTable = "device_registrations"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	columns = []string{"id", "owner", "variant", "public_key_material", "name", "created_at", "extensions"}
)

//go:embed schema.sql
var schema string

type (
	// PoolOps is the subset of pgxpool.Pool the repository needs.
	PoolOps interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		Ping(ctx context.Context) error
	}

	Repository struct {
		pool    PoolOps
		scanner Scanner
		clock   clock.Clock
		policy  model.ExpirationPolicy
		logger  logger.Logger
	}

	registrationRow struct {
		ID                int64     `db:"id"`
		Owner             string    `db:"owner"`
		Variant           string    `db:"variant"`
		PublicKeyMaterial string    `db:"public_key_material"`
		Name              string    `db:"name"`
		CreatedAt         time.Time `db:"created_at"`
		Extensions        []byte    `db:"extensions"`
	}
)

// Migrate creates the registrations table and its indexes when missing.
func Migrate(ctx context.Context, pool PoolOps) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return nil
}

func NewRepository(
	pool PoolOps,
	scanner Scanner,
	clk clock.Clock,
	policy model.ExpirationPolicy,
	log logger.Logger,
) *Repository {
	if clk == nil {
		clk = clock.System()
	}

	return &Repository{
		pool:    pool,
		scanner: scanner,
		clock:   clk,
		policy:  policy,
		logger:  log.Component("postgres_repository"),
	}
}

func (r *Repository) RegisterDevice(ctx context.Context, reg *model.Registration) (*model.Registration, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	candidate := reg.Persisted(0, r.clock.Now())
	candidate.CreatedAt = candidate.CreatedAt.Truncate(time.Microsecond)

	extensions, err := encodeExtensions(candidate.Extensions)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Insert(registrationsTable).
		Columns("owner", "variant", "public_key_material", "name", "created_at", "extensions").
		Values(
			candidate.Owner,
			candidate.Variant.String(),
			candidate.PublicKeyMaterial,
			candidate.Label,
			candidate.CreatedAt,
			extensions,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	var id int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return nil, unavailable(err)
	}

	candidate.ID = model.RegistrationID(id)

	return candidate, nil
}

func (r *Repository) GetRegisteredDevice(ctx context.Context, id model.RegistrationID) (*model.Registration, error) {
	query, args, err := r.activeSelect().
		Where(sq.Eq{"id": int64(id)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var row registrationRow
	if err := r.scanner.ScanOne(&row, rows); err != nil {
		if r.scanner.IsNotFound(err) {
			return nil, model.ErrRegistrationNotFound
		}

		return nil, unavailable(err)
	}

	return row.toRegistration()
}

func (r *Repository) GetRegisteredDevices(ctx context.Context, owner string) ([]*model.Registration, error) {
	return r.queryRegistrations(ctx, r.activeSelect().Where(sq.Eq{"owner": owner}))
}

func (r *Repository) ListRegisteredDevices(ctx context.Context) ([]*model.Registration, error) {
	return r.queryRegistrations(ctx, r.activeSelect())
}

func (r *Repository) IsActivated(ctx context.Context, owner string) (bool, error) {
	query, args, err := r.applyPolicy(psql.Select("1").From(registrationsTable).Where(sq.Eq{"owner": owner})).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var activated bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&activated); err != nil {
		return false, unavailable(err)
	}

	return activated, nil
}

func (r *Repository) RemoveDevice(ctx context.Context, id model.RegistrationID) error {
	return r.delete(ctx, psql.Delete(registrationsTable).Where(sq.Eq{"id": int64(id)}))
}

func (r *Repository) RemoveAll(ctx context.Context, owner string) error {
	return r.delete(ctx, psql.Delete(registrationsTable).Where(sq.Eq{"owner": owner}))
}

func (r *Repository) PurgeExpired(ctx context.Context) (int, error) {
	if !r.policy.Enabled() {
		return 0, nil
	}

	query, args, err := psql.Delete(registrationsTable).
		Where(sq.Lt{"created_at": r.policy.Cutoff(r.clock.Now())}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, unavailable(err)
	}

	removed := int(result.RowsAffected())
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("expired registrations purged")
	}

	return removed, nil
}

// Clear deletes every row. The identity sequence is left untouched so ids
// are not handed out twice.
func (r *Repository) Clear(ctx context.Context) error {
	return r.delete(ctx, psql.Delete(registrationsTable))
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return unavailable(err)
	}

	return nil
}

func (r *Repository) activeSelect() sq.SelectBuilder {
	return r.applyPolicy(psql.Select(columns...).From(registrationsTable))
}

func (r *Repository) applyPolicy(builder sq.SelectBuilder) sq.SelectBuilder {
	if !r.policy.Enabled() {
		return builder
	}

	return builder.Where(sq.GtOrEq{"created_at": r.policy.Cutoff(r.clock.Now())})
}

func (r *Repository) queryRegistrations(ctx context.Context, builder sq.SelectBuilder) ([]*model.Registration, error) {
	query, args, err := builder.OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var registrationRows []registrationRow
	if err := r.scanner.ScanAll(&registrationRows, rows); err != nil {
		return nil, unavailable(err)
	}

	regs := make([]*model.Registration, 0, len(registrationRows))

	for index := range registrationRows {
		reg, err := registrationRows[index].toRegistration()
		if err != nil {
			return nil, err
		}

		regs = append(regs, reg)
	}

	return regs, nil
}

func (r *Repository) delete(ctx context.Context, builder sq.DeleteBuilder) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return unavailable(err)
	}

	return nil
}

func (row registrationRow) toRegistration() (*model.Registration, error) {
	if row.ID <= 0 {
		return nil, fmt.Errorf("%w: row has id %d", model.ErrCorruptData, row.ID)
	}

	variant := model.Variant(row.Variant)
	if !variant.IsKnown() {
		return nil, fmt.Errorf("%w: %v: %q", model.ErrCorruptData, model.ErrUnknownVariant, row.Variant)
	}

	reg := &model.Registration{
		ID:                model.RegistrationID(row.ID),
		Owner:             row.Owner,
		Variant:           variant,
		PublicKeyMaterial: row.PublicKeyMaterial,
		Label:             row.Name,
		CreatedAt:         row.CreatedAt.UTC(),
	}

	if len(row.Extensions) > 0 {
		if err := json.Unmarshal(row.Extensions, &reg.Extensions); err != nil {
			return nil, fmt.Errorf("%w: decoding extensions of %d: %v", model.ErrCorruptData, row.ID, err)
		}

		if len(reg.Extensions) == 0 {
			reg.Extensions = nil
		}
	}

	return reg, nil
}

func encodeExtensions(extensions map[string]json.RawMessage) ([]byte, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(extensions)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding extensions: %v", model.ErrInvalidRegistration, err)
	}

	return data, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}
