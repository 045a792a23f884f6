package store

import (
	"context"
	"database/sql"
	"time"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/services/filmcal/store/db"
)

type UploadStats struct {
	NewFilms   int
	Screenings int
	Skipped    int
}

// Upload pushes the master set to a website database, local sqlite or a
// remote libsql URL. Films match an existing row by letterboxd short url
// first, then by (title, director); matched rows get their metadata
// refreshed, screenings upsert on (film, showtime, location). With clear
// set, all existing rows are dropped first.
func Upload(ctx context.Context, database *sql.DB, films []records.MasterFilm, clear bool) (UploadStats, error) {
	var stats UploadStats

	if _, err := database.ExecContext(ctx, db.UploadSchema); err != nil {
		return stats, err
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	if clear {
		if _, err := tx.ExecContext(ctx, `DELETE FROM screenings`); err != nil {
			return stats, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM films`); err != nil {
			return stats, err
		}
	}

	for _, film := range films {
		if film.Title == "" {
			stats.Skipped++
			continue
		}

		id, created, err := upsertFilm(ctx, tx, film)
		if err != nil {
			return stats, err
		}
		if created {
			stats.NewFilms++
		}

		for _, scr := range film.Dates {
			if scr.Timestamp == "" {
				continue
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO screenings (film_id, showtime, location, url_tickets, url_info, version)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (film_id, showtime, location) DO UPDATE SET
					url_tickets = excluded.url_tickets,
					url_info = excluded.url_info,
					version = excluded.version
			`, id, isoShowtime(scr.Timestamp), scr.Location, scr.UrlTickets, scr.UrlInfo, scr.Version)
			if err != nil {
				return stats, err
			}
			stats.Screenings++
		}
	}

	return stats, tx.Commit()
}

func upsertFilm(ctx context.Context, tx *sql.Tx, film records.MasterFilm) (id int64, created bool, err error) {
	found := false
	if film.LetterboxdShortUrl != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM films WHERE letterboxd_short_url = ?`,
			film.LetterboxdShortUrl,
		).Scan(&id)
		if err != nil && err != sql.ErrNoRows {
			return 0, false, err
		}
		found = err == nil
	}
	if !found {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM films WHERE title = ? AND director = ?`,
			film.Title, film.Director,
		).Scan(&id)
		if err != nil && err != sql.ErrNoRows {
			return 0, false, err
		}
		found = err == nil
	}

	if found {
		_, err = tx.ExecContext(ctx, `
			UPDATE films SET
				title = ?, director = ?, year = ?,
				letterboxd_url = ?, letterboxd_short_url = ?,
				letterboxd_rating = ?, letterboxd_viewers = ?, tmdb_url = ?,
				genres = ?, country = ?, primary_language = ?, spoken_languages = ?,
				runtime_minutes = ?, title_original = ?, title_en = ?, title_es = ?
			WHERE id = ?
		`, film.Title, film.Director, film.Year,
			film.LetterboxdUrl, film.LetterboxdShortUrl,
			film.LetterboxdRating, film.LetterboxdViewers, film.TmdbUrl,
			records.EncodeStrings(film.Genres), film.Country, film.PrimaryLanguage,
			records.EncodeStrings(film.SpokenLanguages),
			film.RuntimeMinutes, film.TitleOriginal, film.TitleEn, film.TitleEs,
			id)
		return id, false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO films (
			title, director, year,
			letterboxd_url, letterboxd_short_url,
			letterboxd_rating, letterboxd_viewers, tmdb_url,
			genres, country, primary_language, spoken_languages,
			runtime_minutes, title_original, title_en, title_es
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, film.Title, film.Director, film.Year,
		film.LetterboxdUrl, film.LetterboxdShortUrl,
		film.LetterboxdRating, film.LetterboxdViewers, film.TmdbUrl,
		records.EncodeStrings(film.Genres), film.Country, film.PrimaryLanguage,
		records.EncodeStrings(film.SpokenLanguages),
		film.RuntimeMinutes, film.TitleOriginal, film.TitleEn, film.TitleEs)
	if err != nil {
		return 0, false, err
	}

	// read the id back instead of LastInsertId, the remote driver does
	// not report rowids
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM films WHERE title = ? AND director = ? ORDER BY id DESC LIMIT 1`,
		film.Title, film.Director,
	).Scan(&id)
	return id, true, err
}

// isoShowtime converts the wire timestamp to the ISO 8601 form the
// website's timestamptz column expects. Unparseable values pass through.
func isoShowtime(timestamp string) string {
	t, err := time.Parse(records.TimestampLayout, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Format("2006-01-02T15:04:05")
}
