package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/sqliteutil"
	"filmcalendar-backend/lib/timezone"
	"filmcalendar-backend/services/filmcal/store/db"
)

// ResultsDB is the per-run scrape results database. Each theater's rows
// are replaced wholesale on save, the master CSV is what accumulates
// across runs.
type ResultsDB struct {
	db *sql.DB
}

func OpenResults(path string) (*ResultsDB, error) {
	database, err := sqliteutil.OpenDB(db.Schema, path)
	if err != nil {
		return nil, err
	}
	return &ResultsDB{db: database}, nil
}

func (r *ResultsDB) Close() error {
	return r.db.Close()
}

// Row ids are uuid v5 so re-saving the same scrape is byte-identical.
func theaterId(key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))
}

func filmId(theater uuid.UUID, film records.Film) uuid.UUID {
	identity := film.TheaterFilmLink
	if identity == "" {
		identity = film.Title
	}
	return uuid.NewSHA1(theater, []byte(identity))
}

// SaveRun replaces one theater's rows with a fresh scrape.
func (r *ResultsDB) SaveRun(ctx context.Context, key, name string, scrapedAt time.Time, films []records.Film) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tid := theaterId(key)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO theaters (id, key, name, scraped_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET name = excluded.name, scraped_at = excluded.scraped_at
	`, tid.String(), key, name, scrapedAt.Unix())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM screenings WHERE film_id IN (SELECT id FROM films WHERE theater_id = ?)
	`, tid.String())
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM films WHERE theater_id = ?`, tid.String())
	if err != nil {
		return err
	}

	for _, film := range films {
		fid := filmId(tid, film)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO films (id, theater_id, title, theater_film_link, director, year)
			VALUES (?, ?, ?, ?, ?, ?)
		`, fid.String(), tid.String(), film.Title, film.TheaterFilmLink, film.Director, film.Year)
		if err != nil {
			return err
		}

		for _, scr := range film.Dates {
			sid := uuid.NewSHA1(fid, []byte(scr.Key()))
			_, err = tx.ExecContext(ctx, `
				INSERT INTO screenings (id, film_id, showtime, location, url_tickets, url_info, version)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, sid.String(), fid.String(), scr.Timestamp, scr.Location, scr.UrlTickets, scr.UrlInfo, scr.Version)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// TheaterRun is one theater's row in the results database.
type TheaterRun struct {
	Key       string
	Name      string
	ScrapedAt time.Time
}

// Theaters lists every theater with a saved scrape, oldest first so a
// merge processes stale results before fresh ones.
func (r *ResultsDB) Theaters(ctx context.Context) ([]TheaterRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, name, scraped_at FROM theaters ORDER BY scraped_at, key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TheaterRun
	for rows.Next() {
		var run TheaterRun
		var scrapedAt int64
		if err := rows.Scan(&run.Key, &run.Name, &scrapedAt); err != nil {
			return nil, err
		}
		run.ScrapedAt = time.Unix(scrapedAt, 0).In(timezone.Location)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Films reads one theater's saved scrape back, screenings sorted the way
// the scrapers emit them.
func (r *ResultsDB) Films(ctx context.Context, key string) ([]records.Film, error) {
	tid := theaterId(key).String()

	var theaterName string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM theaters WHERE id = ?`, tid).Scan(&theaterName)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, theater_film_link, director, year
		FROM films WHERE theater_id = ? ORDER BY title
	`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var films []records.Film
	var ids []string
	for rows.Next() {
		var id string
		var film records.Film
		err = rows.Scan(&id, &film.Title, &film.TheaterFilmLink, &film.Director, &film.Year)
		if err != nil {
			return nil, err
		}
		film.Theater = theaterName
		films = append(films, film)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		screenings, err := r.filmScreenings(ctx, id)
		if err != nil {
			return nil, err
		}
		films[i].Dates = screenings
	}
	return films, nil
}

func (r *ResultsDB) filmScreenings(ctx context.Context, filmId string) ([]records.Screening, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT showtime, location, url_tickets, url_info, version
		FROM screenings WHERE film_id = ? ORDER BY showtime, location
	`, filmId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var screenings []records.Screening
	for rows.Next() {
		var scr records.Screening
		err = rows.Scan(&scr.Timestamp, &scr.Location, &scr.UrlTickets, &scr.UrlInfo, &scr.Version)
		if err != nil {
			return nil, err
		}
		screenings = append(screenings, scr)
	}
	return screenings, rows.Err()
}
