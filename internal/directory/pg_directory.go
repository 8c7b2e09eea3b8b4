package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgDirectory struct {
	db querier
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{db: pool}
}

func newPgDirectoryWithConn(conn querier) *PgDirectory {
	return &PgDirectory{db: conn}
}

const providerSelect = `
	SELECT p.id, p.first_name, p.last_name, p.title, p.specialty, p.phone, p.email,
	       p.location, p.address, p.bio, p.rating::float8, p.review_count, p.accepting_new_patients, p.avatar_url,
	       COALESCE(array_agg(DISTINCT t.name) FILTER (WHERE t.name IS NOT NULL), '{}')
	FROM providers p
	LEFT JOIN provider_appointment_types pat ON pat.provider_id = p.id
	LEFT JOIN appointment_types t ON t.id = pat.appointment_type_id`

func scanProvider(row pgx.Row) (*appointment.Provider, error) {
	var p appointment.Provider
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Title,
		&p.Specialty,
		&p.Phone,
		&p.Email,
		&p.Location,
		&p.Address,
		&p.Bio,
		&p.Rating,
		&p.ReviewCount,
		&p.AcceptingNewPatients,
		&p.AvatarURL,
		&p.AppointmentTypes,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *PgDirectory) Provider(ctx context.Context, id int64) (*appointment.Provider, error) {
	row := d.db.QueryRow(ctx, providerSelect+`
		WHERE p.id = $1
		GROUP BY p.id
	`, id)

	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointment.ErrProviderNotFound
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

func (d *PgDirectory) AppointmentType(ctx context.Context, id int64) (*appointment.AppointmentType, error) {
	var t appointment.AppointmentType
	err := d.db.QueryRow(ctx, `
		SELECT id, name, description, duration_minutes, category
		FROM appointment_types
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Description, &t.DurationMinutes, &t.Category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointment.ErrAppointmentTypeNotFound
		}
		return nil, fmt.Errorf("get appointment type: %w", err)
	}
	return &t, nil
}

// Search matches q with ILIKE against name, specialty and location.
// Empty arguments do not filter.
func (d *PgDirectory) Search(ctx context.Context, q, specialty string) ([]appointment.Provider, error) {
	rows, err := d.db.Query(ctx, providerSelect+`
		WHERE ($1 = '' OR p.first_name ILIKE '%' || $1 || '%'
		               OR p.last_name ILIKE '%' || $1 || '%'
		               OR p.specialty ILIKE '%' || $1 || '%'
		               OR p.location ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR p.specialty = $2)
		GROUP BY p.id
		ORDER BY p.rating DESC, p.id
	`, q, specialty)
	if err != nil {
		return nil, fmt.Errorf("search providers: %w", err)
	}
	defer rows.Close()

	var out []appointment.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search providers: %w", err)
	}
	return out, nil
}

func (d *PgDirectory) Specialties(ctx context.Context) ([]string, error) {
	rows, err := d.db.Query(ctx, `SELECT DISTINCT specialty FROM providers ORDER BY specialty`)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	return out, nil
}

func (d *PgDirectory) AppointmentTypes(ctx context.Context) ([]appointment.AppointmentType, error) {
	rows, err := d.db.Query(ctx, `
		SELECT id, name, description, duration_minutes, category
		FROM appointment_types
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list appointment types: %w", err)
	}
	defer rows.Close()

	var out []appointment.AppointmentType
	for rows.Next() {
		var t appointment.AppointmentType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.DurationMinutes, &t.Category); err != nil {
			return nil, fmt.Errorf("scan appointment type: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointment types: %w", err)
	}
	return out, nil
}

func (d *PgDirectory) ProviderIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.db.Query(ctx, `SELECT id FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list provider ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("list provider ids: %w", err)
	}
	return ids, nil
}

// Seed inserts providers and types that are not present yet, keyed by
// provider email and type name, and links every provider to every type.
// It returns the number of providers inserted.
func (d *PgDirectory) Seed(ctx context.Context, providers []appointment.Provider, types []appointment.AppointmentType) (int, error) {
	for _, t := range types {
		_, err := d.db.Exec(ctx, `
			INSERT INTO appointment_types (name, description, duration_minutes, category)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, t.Name, t.Description, t.DurationMinutes, t.Category)
		if err != nil {
			return 0, fmt.Errorf("insert appointment type %q: %w", t.Name, err)
		}
	}

	inserted := 0
	for _, p := range providers {
		tag, err := d.db.Exec(ctx, `
			INSERT INTO providers (
				first_name, last_name, title, specialty, phone, email, location, address, bio,
				rating, review_count, accepting_new_patients, avatar_url
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (email) DO NOTHING
		`, p.FirstName, p.LastName, p.Title, p.Specialty, p.Phone, p.Email, p.Location, p.Address, p.Bio,
			p.Rating, p.ReviewCount, p.AcceptingNewPatients, p.AvatarURL)
		if err != nil {
			return inserted, fmt.Errorf("insert provider %q: %w", p.Email, err)
		}
		inserted += int(tag.RowsAffected())
	}

	_, err := d.db.Exec(ctx, `
		INSERT INTO provider_appointment_types (provider_id, appointment_type_id)
		SELECT p.id, t.id FROM providers p CROSS JOIN appointment_types t
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return inserted, fmt.Errorf("link provider appointment types: %w", err)
	}
	return inserted, nil
}
