package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// BusinessRepo implements ports.BusinessRepository with pgx.
type BusinessRepo struct {
	db *DB
}

// NewBusinessRepo creates a new BusinessRepo.
func NewBusinessRepo(db *DB) *BusinessRepo {
	return &BusinessRepo{db: db}
}

const businessColumns = `id, name, category, description, address, lat, lng,
	COALESCE(phone, ''), COALESCE(whatsapp, ''), photos, COALESCE(schedule, '{}'),
	ad_level, ad_start_date, ad_end_date, COALESCE(qr_code_url, ''), status,
	COALESCE(owner_user_id, ''), COALESCE(google_maps_query, ''), created_at, updated_at`

const upsertBusiness = `
	INSERT INTO businesses (id, name, category, description, address, lat, lng, phone, whatsapp,
		photos, schedule, ad_level, ad_start_date, ad_end_date, qr_code_url, status, owner_user_id,
		google_maps_query, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, category = EXCLUDED.category, description = EXCLUDED.description,
	    address = EXCLUDED.address, lat = EXCLUDED.lat, lng = EXCLUDED.lng,
	    phone = EXCLUDED.phone, whatsapp = EXCLUDED.whatsapp, photos = EXCLUDED.photos,
	    schedule = EXCLUDED.schedule, ad_level = EXCLUDED.ad_level,
	    ad_start_date = EXCLUDED.ad_start_date, ad_end_date = EXCLUDED.ad_end_date,
	    qr_code_url = EXCLUDED.qr_code_url, status = EXCLUDED.status,
	    owner_user_id = EXCLUDED.owner_user_id, google_maps_query = EXCLUDED.google_maps_query,
	    updated_at = EXCLUDED.updated_at`

const insertBusiness = `
	INSERT INTO businesses (id, name, category, description, address, lat, lng, phone, whatsapp,
		photos, schedule, ad_level, ad_start_date, ad_end_date, qr_code_url, status, owner_user_id,
		google_maps_query, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (id) DO NOTHING`

func businessArgs(b *domain.Business) []any {
	photos := b.Photos
	if photos == nil {
		photos = []string{}
	}
	return []any{
		b.ID, b.Name, string(b.Category), b.Description, b.Address, b.Location.Lat, b.Location.Lng,
		b.Phone, b.WhatsApp, photos, b.Schedule, string(b.AdLevel), b.AdStartDate, b.AdEndDate,
		b.QRCodeURL, string(b.Status), b.OwnerUserID, b.MapsQuery, b.CreatedAt, b.UpdatedAt,
	}
}

// Create inserts a business that must not exist yet.
func (r *BusinessRepo) Create(ctx context.Context, b *domain.Business) error {
	tag, err := r.db.Pool.Exec(ctx, insertBusiness, businessArgs(b)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: business %s", domain.ErrConflict, b.ID)
	}
	return nil
}

// Upsert inserts or updates a single business.
func (r *BusinessRepo) Upsert(ctx context.Context, b *domain.Business) error {
	_, err := r.db.Pool.Exec(ctx, upsertBusiness, businessArgs(b)...)
	return err
}

// UpsertBatch inserts many businesses using pgx.Batch.
func (r *BusinessRepo) UpsertBatch(ctx context.Context, bs []domain.Business) error {
	batch := &pgx.Batch{}
	for i := range bs {
		batch.Queue(upsertBusiness, businessArgs(&bs[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range bs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func scanBusiness(row pgx.Row) (*domain.Business, error) {
	var b domain.Business
	var category, adLevel, status string
	err := row.Scan(
		&b.ID, &b.Name, &category, &b.Description, &b.Address, &b.Location.Lat, &b.Location.Lng,
		&b.Phone, &b.WhatsApp, &b.Photos, &b.Schedule,
		&adLevel, &b.AdStartDate, &b.AdEndDate, &b.QRCodeURL, &status,
		&b.OwnerUserID, &b.MapsQuery, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Category = domain.Category(category)
	b.AdLevel = domain.AdLevel(adLevel)
	b.Status = domain.Status(status)
	return &b, nil
}

// GetByID returns a business by id.
func (r *BusinessRepo) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	b, err := scanBusiness(r.db.Pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "business "+id)
	}
	return b, nil
}

// businessWhere builds the WHERE clause for filter, numbering placeholders from 1.
func businessWhere(f domain.BusinessFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, string(f.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR address ILIKE $%d)", n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns one page of businesses, premium first, then estandar, then by name.
func (r *BusinessRepo) List(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
	where, args := businessWhere(f)

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM businesses`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count businesses: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	args = append(args, limit, offset)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+businessColumns+` FROM businesses`+where+fmt.Sprintf(`
		ORDER BY CASE ad_level WHEN 'premium' THEN 2 WHEN 'estandar' THEN 1 ELSE 0 END DESC,
		         lower(name), id
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *b)
	}
	return out, total, rows.Err()
}

func (r *BusinessRepo) exec(ctx context.Context, id, sql string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateStatus sets the moderation status.
func (r *BusinessRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return r.exec(ctx, id, `UPDATE businesses SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
}

// UpdateSponsorship sets the ad level and campaign dates.
func (r *BusinessRepo) UpdateSponsorship(ctx context.Context, sp *domain.Sponsorship) error {
	return r.exec(ctx, sp.BusinessID, `
		UPDATE businesses
		SET ad_level = $2, ad_start_date = $3, ad_end_date = $4, updated_at = now()
		WHERE id = $1
	`, sp.BusinessID, string(sp.Level), sp.StartDate, sp.EndDate)
}

// UpdateLocation moves the business marker.
func (r *BusinessRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	return r.exec(ctx, id, `UPDATE businesses SET lat = $2, lng = $3, updated_at = now() WHERE id = $1`, id, loc.Lat, loc.Lng)
}
