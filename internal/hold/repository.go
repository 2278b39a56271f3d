package hold

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository is the hold store. Every state change is a conditional write on
// the current status, so concurrent callers cannot both win a transition.
type Repository interface {
	Create(ctx context.Context, h *Hold) error
	GetByID(ctx context.Context, id string) (*Hold, error)
	List(ctx context.Context, filter Filter) ([]*Hold, int, error)

	// Touch records activity on a Holding hold.
	Touch(ctx context.Context, id string, at time.Time) error
	// Transition moves a Holding hold to Cancelled or Expired.
	// It returns ErrNotHolding when the hold already left Holding.
	Transition(ctx context.Context, id string, to Status, reason Reason, at time.Time) (*Hold, error)
	// Confirm moves a Holding hold to Confirmed unless another Confirmed hold
	// on the same court overlaps it, in which case ErrSlotNoLongerAvailable.
	// A Holding hold whose deadline is before at is left alone and reported
	// as ErrTimerExpired.
	Confirm(ctx context.Context, id string, at time.Time, grace time.Duration) (*Hold, error)
	// AttachPayment records the payment intent of a Holding hold.
	AttachPayment(ctx context.Context, id, intentID, idempotencyKey string, at time.Time) (*Hold, error)
	// ListElapsed returns Holding holds whose deadline is before now.
	ListElapsed(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*Hold, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var holdColumns = []string{
	"id", "court_id", "customer_id", "customer_email", "customer_member",
	"slot_date::text", "start_minutes", "duration_minutes", "start_time", "end_time", "status", "price::text",
	"COALESCE(payment_intent_id, '')", "COALESCE(idempotency_key, '')", "COALESCE(cancellation_reason, '')",
	"created_at", "last_active", "expires_at", "updated_at",
}

var returningHold = "RETURNING " + strings.Join(holdColumns, ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(row rowScanner, extra ...any) (*Hold, error) {
	var h Hold
	var price string
	targets := []any{
		&h.ID, &h.CourtID, &h.CustomerID, &h.CustomerEmail, &h.Member,
		&h.Date, &h.StartMinutes, &h.DurationMinutes, &h.StartTime, &h.EndTime, &h.Status, &price,
		&h.PaymentIntentID, &h.IdempotencyKey, &h.CancellationReason,
		&h.CreatedAt, &h.LastActive, &h.ExpiresAt, &h.UpdatedAt,
	}
	if err := row.Scan(append(targets, extra...)...); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("decode hold price %q: %w", price, err)
	}
	h.Price = d
	return &h, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *pgxRepository) Create(ctx context.Context, h *Hold) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.holds").
		Columns(
			"court_id", "customer_id", "customer_email", "customer_member",
			"slot_date", "start_minutes", "duration_minutes", "start_time", "end_time", "status", "price",
			"created_at", "last_active", "expires_at", "updated_at",
		).
		Values(
			h.CourtID, h.CustomerID, h.CustomerEmail, h.Member,
			squirrel.Expr("?::date", h.Date), h.StartMinutes, h.DurationMinutes, h.StartTime, h.EndTime, h.Status, squirrel.Expr("?::numeric", h.Price.String()),
			h.CreatedAt, h.LastActive, h.ExpiresAt, h.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create hold query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&h.ID); err != nil {
		return fmt.Errorf("create hold failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Hold, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(holdColumns...).
		From("public.holds").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get hold query failed: %w", err)
	}

	h, err := scanHold(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hold failed: %w", err)
	}
	return h, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Hold, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(holdColumns, "count(*) OVER() as total_count")...).
		From("public.holds")

	if filter.CustomerID != "" {
		query = query.Where(squirrel.Eq{"customer_id": filter.CustomerID})
	}
	if filter.CourtID != "" {
		query = query.Where(squirrel.Eq{"court_id": filter.CourtID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Date != "" {
		query = query.Where(squirrel.Expr("slot_date = ?::date", filter.Date))
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	sql, args, err := query.
		OrderBy("start_time DESC", "id").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list holds query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list holds failed: %w", err)
	}
	defer rows.Close()

	var holds []*Hold
	var total int
	for rows.Next() {
		h, err := scanHold(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan hold failed: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate holds failed: %w", err)
	}
	return holds, total, nil
}

func (r *pgxRepository) Touch(ctx context.Context, id string, at time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("last_active", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": StatusHolding}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch hold query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch hold failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return r.missed(ctx, id)
	}
	return nil
}

func (r *pgxRepository) Transition(ctx context.Context, id string, to Status, reason Reason, at time.Time) (*Hold, error) {
	if to != StatusCancelled && to != StatusExpired {
		return nil, fmt.Errorf("unsupported hold transition to %q", to)
	}
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("status", to).
		Set("cancellation_reason", nullable(string(reason))).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": StatusHolding}).
		Suffix(returningHold).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition hold query failed: %w", err)
	}
	return r.updateReturning(ctx, id, query, args)
}

// Confirm relies on the holds_no_overlap exclusion constraint, which covers
// confirmed rows only: the update either wins the range or fails atomically.
func (r *pgxRepository) Confirm(ctx context.Context, id string, at time.Time, grace time.Duration) (*Hold, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("status", StatusConfirmed).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": StatusHolding}).
		Where(squirrel.Expr("GREATEST(expires_at, last_active + ? * interval '1 second') >= ?", grace.Seconds(), at)).
		Suffix(returningHold).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build confirm hold query failed: %w", err)
	}
	h, err := r.updateReturning(ctx, id, query, args)
	if errors.Is(err, ErrNotHolding) {
		// The row may still be Holding with its deadline passed.
		current, getErr := r.GetByID(ctx, id)
		if getErr == nil && current.Status == StatusHolding {
			return nil, ErrTimerExpired
		}
	}
	return h, err
}

func (r *pgxRepository) AttachPayment(ctx context.Context, id, intentID, idempotencyKey string, at time.Time) (*Hold, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("payment_intent_id", intentID).
		Set("idempotency_key", nullable(idempotencyKey)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": StatusHolding}).
		Suffix(returningHold).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attach payment query failed: %w", err)
	}
	return r.updateReturning(ctx, id, query, args)
}

func (r *pgxRepository) ListElapsed(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*Hold, error) {
	if limit < 1 {
		limit = 100
	}
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(holdColumns...).
		From("public.holds").
		Where(squirrel.Eq{"status": StatusHolding}).
		Where(squirrel.Expr("GREATEST(expires_at, last_active + ? * interval '1 second') < ?", grace.Seconds(), now)).
		OrderBy("expires_at").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list elapsed holds query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list elapsed holds failed: %w", err)
	}
	defer rows.Close()

	var holds []*Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold failed: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elapsed holds failed: %w", err)
	}
	return holds, nil
}

// updateReturning runs a conditional update. No row means the hold is missing
// or no longer Holding.
func (r *pgxRepository) updateReturning(ctx context.Context, id, query string, args []any) (*Hold, error) {
	h, err := scanHold(r.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return h, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missed(ctx, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
		return nil, ErrSlotNoLongerAvailable
	}
	if isInvalidUUID(err) {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("update hold failed: %w", err)
}

func (r *pgxRepository) missed(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrNotHolding
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}
