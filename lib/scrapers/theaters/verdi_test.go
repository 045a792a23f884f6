package theaters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"filmcalendar-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

const verdiCartelera = `<html><body>
<article class="article-cartelera">
  <h2><a href="/pelicula/juana-de-arco" data-tiulo="Sesi%F3n%20TETA:%20La%20pasi%F3n%20de%20Juana%20de%20Arco">LA PASIÓN DE JUANA DE ARCO</a></h2>
  <table class="ficha">
    <tr><th>Director:</th><td>Carl Theodor Dreyer</td></tr>
    <tr><th>Duración:</th><td>82 min</td></tr>
  </table>
  <div class="tabs-performances">
    <div class="tab-content">
      <div class="tab-pane" id="77-20260305">
        <div class="pelicula">
          <span>V.O. SUB. CASTELLANO</span>
          <a href="https://tickets.example/77/1700">17:00</a>
          <a href="https://tickets.example/77/1930">19:30</a>
        </div>
        <div class="pelicula">
          <span>CASTELLANO</span>
          <a href="/comprar/77/1800">18:00</a>
        </div>
      </div>
      <div class="tab-pane" id="77-20260401">
        <div class="pelicula"><span>V.O. SUB. CASTELLANO</span><a href="https://tickets.example/77/2200">22:00</a></div>
      </div>
      <div class="tab-pane" id="77-extra"></div>
    </div>
  </div>
</article>
<article class="article-cartelera">
  <h2><a href="https://tickets.example/pelicula/as-bestas" title="As bestas - VOSE">AS BESTAS</a></h2>
  <div class="tabs-performances">
    <div class="tab-content">
      <div class="tab-pane" id="88-20260306">
        <div class="pelicula">
          <span>CASTELLANO</span>
          <a href="https://tickets.example/88/2010">20:10</a>
        </div>
      </div>
    </div>
  </div>
</article>
<article class="article-cartelera">
  <h2><a href="/pelicula/fuera" data-tiulo="Fuera%20de%20semana">FUERA DE SEMANA</a></h2>
  <div class="tabs-performances">
    <div class="tab-content">
      <div class="tab-pane" id="99-20260501">
        <div class="pelicula"><span>V.O. SUB. CASTELLANO</span><a href="/t/99">16:00</a></div>
      </div>
    </div>
  </div>
</article>
</body></html>`

func TestVerdiFetchFilms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cartelera" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(verdiCartelera))
	}))
	defer srv.Close()

	s := &verdiScraper{client: newTestClient(), baseUrl: srv.URL}
	window := DateRange{
		Start: timezone.Date(2026, 3, 5, 0, 0),
		End:   timezone.Date(2026, 3, 8, 0, 0),
	}

	films, err := s.FetchFilms(context.Background(), window)
	require.NoError(t, err)

	// the film with no pane inside the window is dropped
	require.Len(t, films, 2)

	juana := films[0]
	require.Equal(t, "Cines Verdi Madrid", juana.Theater)
	require.Equal(t, "La pasión de Juana de Arco", juana.Title)
	require.Equal(t, srv.URL+"/pelicula/juana-de-arco", juana.TheaterFilmLink)
	require.Equal(t, "Carl Theodor Dreyer", juana.Director)
	require.Equal(t, []string{
		"2026-03-05 17:00",
		"2026-03-05 18:00",
		"2026-03-05 19:30",
	}, timestamps(juana))

	// the CASTELLANO session is dubbed because a V.O. run exists
	require.Empty(t, juana.Dates[0].Version)
	require.Equal(t, "dubbed", juana.Dates[1].Version)
	require.Empty(t, juana.Dates[2].Version)

	// ticket hrefs are carried as printed
	require.Equal(t, "https://tickets.example/77/1700", juana.Dates[0].UrlTickets)
	require.Equal(t, "/comprar/77/1800", juana.Dates[1].UrlTickets)
	for _, scr := range juana.Dates {
		require.Equal(t, "Verdi", scr.Location)
		require.Equal(t, juana.TheaterFilmLink, scr.UrlInfo)
	}

	// title attribute fallback, and no dubbing tag without a V.O. sibling
	bestas := films[1]
	require.Equal(t, "As bestas", bestas.Title)
	require.Equal(t, "https://tickets.example/pelicula/as-bestas", bestas.TheaterFilmLink)
	require.Empty(t, bestas.Director)
	require.Equal(t, []string{"2026-03-06 20:10"}, timestamps(bestas))
	require.Empty(t, bestas.Dates[0].Version)
}

func TestDecodeLatin1Percent(t *testing.T) {
	cases := []struct {
		in     string
		expect string
	}{
		{"Sesi%F3n", "Sesión"},
		{"%E9%20%E1", "é á"},
		{"sin escapes", "sin escapes"},
		{"corte%2", "corte%2"},
		{"malo%ZZfin", "malo%ZZfin"},
		{"", ""},
	}
	for _, c := range cases {
		require.Equal(t, c.expect, decodeLatin1Percent(c.in), "input: %q", c.in)
	}
}
