package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"japanhouse/models"
)

// PostgresStore writes listings straight into Postgres, bypassing the REST
// layer. Used when SUPABASE_DB_URL is set; same table shape as the REST path.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresStore(ctx context.Context, connString, table string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool, table: table}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) UpsertListings(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			title, url, source_id, price, price_raw, location, description,
			images, features, size, layout, rooms, year_built, building_type,
			access, source, property_type, scraped_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (source, source_id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			price = EXCLUDED.price,
			price_raw = EXCLUDED.price_raw,
			location = EXCLUDED.location,
			description = COALESCE(EXCLUDED.description, %s.description),
			images = EXCLUDED.images,
			features = EXCLUDED.features,
			size = EXCLUDED.size,
			layout = EXCLUDED.layout,
			rooms = EXCLUDED.rooms,
			year_built = EXCLUDED.year_built,
			building_type = EXCLUDED.building_type,
			access = EXCLUDED.access,
			property_type = EXCLUDED.property_type,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()`, s.table, s.table)

	batch := &pgx.Batch{}
	for i := range listings {
		l := &listings[i]
		batch.Queue(query,
			nullable(l.Title), nullable(l.SourceURL), nullable(l.SourceID),
			l.Price, nullable(l.PriceRaw), nullable(l.Location), nullable(l.Description),
			jsonOrNil(l.Images), jsonOrNil(l.Features),
			nullable(l.Size), nullable(l.Layout), nullable(l.Rooms),
			nullable(l.YearBuilt), nullable(l.BuildingType), nullable(l.Access),
			l.Source, nullable(l.PropertyType), l.ScrapedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range listings {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("listing %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *PostgresStore) IdentityIndex(ctx context.Context) (*models.IdentityIndex, error) {
	query := fmt.Sprintf(`SELECT id, source, COALESCE(source_id, ''), COALESCE(url, '') FROM %s`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	idx := models.NewIdentityIndex()
	for rows.Next() {
		var id int64
		var source, sourceID, url string
		if err := rows.Scan(&id, &source, &sourceID, &url); err != nil {
			return nil, err
		}
		if sourceID != "" {
			idx.AddSourceID(source, sourceID, id)
		}
		if url != "" {
			idx.AddURL(url)
		}
	}
	return idx, rows.Err()
}

func (s *PostgresStore) UpdateListing(ctx context.Context, id int64, l models.Listing) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			title = $2, url = $3, price = $4, price_raw = $5, location = $6,
			description = $7, images = $8, features = $9, size = $10, layout = $11,
			rooms = $12, year_built = $13, building_type = $14, access = $15,
			property_type = $16, scraped_at = $17, updated_at = NOW()
		WHERE id = $1`, s.table)

	_, err := s.pool.Exec(ctx, query,
		id, nullable(l.Title), nullable(l.SourceURL), l.Price, nullable(l.PriceRaw),
		nullable(l.Location), nullable(l.Description),
		jsonOrNil(l.Images), jsonOrNil(l.Features),
		nullable(l.Size), nullable(l.Layout), nullable(l.Rooms),
		nullable(l.YearBuilt), nullable(l.BuildingType), nullable(l.Access),
		nullable(l.PropertyType), l.ScrapedAt,
	)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonOrNil(values []string) *string {
	if len(values) == 0 {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	str := string(data)
	return &str
}
