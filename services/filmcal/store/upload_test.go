package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/testutil"
	"filmcalendar-backend/services/filmcal/store/db"
)

func openUploadTarget(t *testing.T) *sql.DB {
	svc, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "store/upload",
		DbSchema: db.UploadSchema,
		DbPath:   filepath.Join(t.TempDir(), "upload.db"),
	})
	t.Cleanup(cleanup)
	return svc.DB
}

func countRows(t *testing.T, database *sql.DB, table string) int {
	var n int
	err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestUploadInsertsAndUpserts(t *testing.T) {
	database := openUploadTarget(t)
	ctx := context.Background()
	films := sampleMaster()

	stats, err := Upload(ctx, database, films, false)
	require.NoError(t, err)
	require.Equal(t, 2, stats.NewFilms)
	require.Equal(t, 3, stats.Screenings)
	require.Equal(t, 0, stats.Skipped)

	// second push matches the existing rows, nothing duplicates
	stats, err = Upload(ctx, database, films, false)
	require.NoError(t, err)
	require.Equal(t, 0, stats.NewFilms)
	require.Equal(t, 2, countRows(t, database, "films"))
	require.Equal(t, 3, countRows(t, database, "screenings"))
}

func TestUploadMatchesByShortUrl(t *testing.T) {
	database := openUploadTarget(t)
	ctx := context.Background()

	first := []records.MasterFilm{{
		Film: records.Film{
			Title:    "El espíritu de la colmena (restaurada)",
			Director: "Víctor Erice",
			Dates:    []records.Screening{{Timestamp: "2026-03-01 19:00", Location: "Sala Azcona"}},
		},
		LetterboxdShortUrl: "https://boxd.it/2a9q",
	}}
	_, err := Upload(ctx, database, first, false)
	require.NoError(t, err)

	// retitled record with the same short url updates in place
	second := []records.MasterFilm{{
		Film: records.Film{
			Title:    "El espíritu de la colmena",
			Director: "Víctor Erice",
			Dates:    []records.Screening{{Timestamp: "2026-03-15 20:00", Location: "Cine Doré"}},
		},
		LetterboxdShortUrl: "https://boxd.it/2a9q",
		LetterboxdRating:   4.2,
	}}
	stats, err := Upload(ctx, database, second, false)
	require.NoError(t, err)
	require.Equal(t, 0, stats.NewFilms)
	require.Equal(t, 1, countRows(t, database, "films"))
	require.Equal(t, 2, countRows(t, database, "screenings"))

	var title string
	var rating float64
	err = database.QueryRow(`SELECT title, letterboxd_rating FROM films`).Scan(&title, &rating)
	require.NoError(t, err)
	require.Equal(t, "El espíritu de la colmena", title)
	require.Equal(t, 4.2, rating)
}

func TestUploadSkipsUntitled(t *testing.T) {
	database := openUploadTarget(t)

	stats, err := Upload(context.Background(), database, []records.MasterFilm{
		{Film: records.Film{Dates: []records.Screening{{Timestamp: "2026-03-01 19:00"}}}},
	}, false)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)
	require.Equal(t, 0, stats.NewFilms)
}

func TestUploadClear(t *testing.T) {
	database := openUploadTarget(t)
	ctx := context.Background()

	_, err := Upload(ctx, database, sampleMaster(), false)
	require.NoError(t, err)

	stats, err := Upload(ctx, database, sampleMaster()[:1], true)
	require.NoError(t, err)
	require.Equal(t, 1, stats.NewFilms)
	require.Equal(t, 1, countRows(t, database, "films"))
	require.Equal(t, 2, countRows(t, database, "screenings"))
}

func TestUploadShowtimeIso(t *testing.T) {
	database := openUploadTarget(t)

	_, err := Upload(context.Background(), database, sampleMaster()[1:], false)
	require.NoError(t, err)

	var showtime string
	err = database.QueryRow(`SELECT showtime FROM screenings`).Scan(&showtime)
	require.NoError(t, err)
	require.Equal(t, "2026-03-04T20:00:00", showtime)
}

// Exercises the remote path against a real sqld instance. Needs docker,
// run with FILMCAL_TEST_SQLD=1.
func TestUploadRemoteLibsql(t *testing.T) {
	if os.Getenv("FILMCAL_TEST_SQLD") == "" {
		t.Skip("set FILMCAL_TEST_SQLD=1 to run the sqld container test")
	}

	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	sqld, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "ghcr.io/tursodatabase/libsql-server:latest",
			ExposedPorts: []string{"8080/tcp"},
			WaitingFor:   wait.ForListeningPort("8080/tcp"),
		},
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, sqld.Terminate(ctx))
	}()

	host, err := sqld.Host(ctx)
	require.NoError(t, err)
	port, err := sqld.MappedPort(ctx, "8080")
	require.NoError(t, err)

	database, err := sql.Open("libsql", fmt.Sprintf("http://%s:%s", host, port.Port()))
	require.NoError(t, err)
	defer database.Close()

	stats, err := Upload(ctx, database, sampleMaster(), false)
	require.NoError(t, err)
	require.Equal(t, 2, stats.NewFilms)

	var n int
	err = database.QueryRow(`SELECT COUNT(*) FROM screenings`).Scan(&n)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
