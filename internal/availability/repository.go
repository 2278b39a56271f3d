package availability

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SlotRepository persists per-day slot documents.
type SlotRepository interface {
	// GetDay returns the stored slots for court on date; found is false when no
	// document exists and the court's default schedule applies.
	GetDay(ctx context.Context, courtID, date string) (slots Slots, found bool, err error)
	// MarkSlots writes marks and, in the same atomic step, stores defaults for
	// every other key that has no row yet. Existing keys outside marks are
	// never overwritten.
	MarkSlots(ctx context.Context, courtID, date string, defaults, marks Slots) error
}

type pgxSlotRepository struct {
	pool *pgxpool.Pool
}

func NewPgxSlotRepository(pool *pgxpool.Pool) SlotRepository {
	return &pgxSlotRepository{pool: pool}
}

func (r *pgxSlotRepository) GetDay(ctx context.Context, courtID, date string) (Slots, bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("time_key", "is_available").
		From("public.court_slots").
		Where(squirrel.Eq{"court_id": courtID}).
		Where(squirrel.Expr("slot_date = ?::date", date)).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build get slots query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("get slots failed: %w", err)
	}
	defer rows.Close()

	slots := Slots{}
	for rows.Next() {
		var key string
		var available bool
		if err := rows.Scan(&key, &available); err != nil {
			return nil, false, fmt.Errorf("scan slot failed: %w", err)
		}
		slots[key] = available
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate slots failed: %w", err)
	}
	if len(slots) == 0 {
		return nil, false, nil
	}
	return slots, true, nil
}

func (r *pgxSlotRepository) MarkSlots(ctx context.Context, courtID, date string, defaults, marks Slots) error {
	if len(marks) == 0 {
		return nil
	}
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	fillRows := 0
	fill := psql.Insert("public.court_slots").
		Columns("court_id", "slot_date", "time_key", "is_available")
	for _, k := range sortedKeys(defaults) {
		if _, marked := marks[k]; marked {
			continue
		}
		fill = fill.Values(courtID, squirrel.Expr("?::date", date), k, defaults[k])
		fillRows++
	}

	mark := psql.Insert("public.court_slots").
		Columns("court_id", "slot_date", "time_key", "is_available")
	for _, k := range sortedKeys(marks) {
		mark = mark.Values(courtID, squirrel.Expr("?::date", date), k, marks[k])
	}
	markQuery, markArgs, err := mark.
		Suffix("ON CONFLICT (court_id, slot_date, time_key) DO UPDATE SET is_available = EXCLUDED.is_available, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark slots query failed: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Writers of one court day run one at a time so fill and mark rows are
		// never locked in opposite orders.
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", courtID+"|"+date); err != nil {
			return fmt.Errorf("lock court day failed: %w", err)
		}
		if fillRows > 0 {
			fillQuery, fillArgs, err := fill.
				Suffix("ON CONFLICT (court_id, slot_date, time_key) DO NOTHING").
				ToSql()
			if err != nil {
				return fmt.Errorf("build fill slots query failed: %w", err)
			}
			if _, err := tx.Exec(ctx, fillQuery, fillArgs...); err != nil {
				return fmt.Errorf("fill default slots failed: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, markQuery, markArgs...); err != nil {
			return fmt.Errorf("mark slots failed: %w", err)
		}
		return nil
	})
}

func sortedKeys(s Slots) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
