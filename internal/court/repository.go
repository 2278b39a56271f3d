package court

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

// Repository is the read side of the court document store.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Court, error)
	List(ctx context.Context, filter Filter) ([]*Court, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var courtColumns = []string{
	"id", "name", "status", "sport_types",
	"COALESCE(open_time::text, '')", "COALESCE(close_time::text, '')",
	"rate_plan", "created_at", "updated_at",
}

// courtRow is the loosely typed shape of a stored court, validated by toCourt.
type courtRow struct {
	ID         string
	Name       string
	Status     string
	SportTypes []string
	OpenTime   string
	CloseTime  string
	RatePlan   []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (row *courtRow) scanTargets() []any {
	return []any{
		&row.ID, &row.Name, &row.Status, &row.SportTypes,
		&row.OpenTime, &row.CloseTime,
		&row.RatePlan, &row.CreatedAt, &row.UpdatedAt,
	}
}

// toCourt validates the stored document at the store boundary.
func (row *courtRow) toCourt() (*Court, error) {
	c := &Court{
		ID:         row.ID,
		Name:       row.Name,
		Status:     Status(row.Status),
		SportTypes: row.SportTypes,
		OpenTime:   trimSeconds(row.OpenTime),
		CloseTime:  trimSeconds(row.CloseTime),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if err := json.Unmarshal(row.RatePlan, &c.RatePlan); err != nil {
		return nil, apperror.Wrap(ErrInvalidRecord, fmt.Errorf("court %s rate plan: %w", row.ID, err))
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// trimSeconds turns Postgres TIME text ("08:00:00") into "08:00".
func trimSeconds(s string) string {
	if len(s) == len("15:04:05") && strings.HasSuffix(s, ":00") {
		return s[:5]
	}
	return s
}

// Validate checks the invariants a court must satisfy to take part in pricing and assignment.
func Validate(c *Court) error {
	if c.ID == "" {
		return apperror.Wrap(ErrInvalidRecord, errors.New("missing id"))
	}
	if !c.Status.Valid() {
		return apperror.Wrap(ErrInvalidRecord, fmt.Errorf("court %s has unknown status %q", c.ID, c.Status))
	}
	if (c.OpenTime == "") != (c.CloseTime == "") {
		return apperror.Wrap(ErrInvalidRecord, fmt.Errorf("court %s must set both open and close time", c.ID))
	}
	if c.OpenTime != "" {
		open, err := timeutil.ParseTimeKey(c.OpenTime)
		if err != nil {
			return apperror.Wrap(ErrInvalidRecord, err)
		}
		closing, err := timeutil.ParseTimeKey(c.CloseTime)
		if err != nil {
			return apperror.Wrap(ErrInvalidRecord, err)
		}
		if closing <= open {
			return apperror.Wrap(ErrInvalidRecord, fmt.Errorf("court %s closes before it opens", c.ID))
		}
	}
	if err := c.RatePlan.Validate(); err != nil {
		return apperror.Wrap(ErrInvalidRecord, fmt.Errorf("court %s: %w", c.ID, err))
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Court, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(courtColumns...).
		From("public.courts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get court query failed: %w", err)
	}

	var row courtRow
	if err := r.pool.QueryRow(ctx, query, args...).Scan(row.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get court failed: %w", err)
	}
	return row.toCourt()
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Court, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(courtColumns...).
		From("public.courts")

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.SportType != "" {
		query = query.Where(squirrel.Expr("? = ANY(sport_types)", filter.SportType))
	}

	sql, args, err := query.OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list courts query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list courts failed: %w", err)
	}
	defer rows.Close()

	var courts []*Court
	for rows.Next() {
		var row courtRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scan court failed: %w", err)
		}
		c, err := row.toCourt()
		if err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courts failed: %w", err)
	}
	return courts, nil
}
