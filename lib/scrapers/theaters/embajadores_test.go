package theaters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"filmcalendar-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

const embajadoresCatalogTemplate = `<html><body>
<a href="%[1]s#parrilla">El agente secreto</a>
<a href="%[1]s">Ver ficha</a>
<a href="%[2]s">El agente secreto (VOSE)</a>
<a href="%[3]s">El agente secreto (doblada al español)</a>
<a href="%[4]s">Espacio Queer: La cocina</a>
</body></html>`

const embajadoresAgente = `<html><body>
<h1>El agente secreto 🎟 ▼</h1>
<label>Dirección</label><span>Kleber Mendonça Filho</span>
<div id="parrilla">
  <h3>Cine Embajadores</h3>
  <div>
    <h4>06/03/2026</h4>
    <a href="https://www.reservaentradas.com/sesion/1">17:00</a>
  </div>
  <h3>Foncalada</h3>
  <div>
    <h4>06/03/2026</h4>
    <a href="https://www.reservaentradas.com/sesion/f">18:00</a>
  </div>
</div>
</body></html>`

const embajadoresAgenteVose = `<html><body>
<h1>El agente secreto (VOSE) 🎟 ▼</h1>
<label>Dirección</label><span>Kleber Mendonça Filho</span>
<div id="parrilla">
  <h3>Cine Embajadores Río</h3>
  <div>
    <h4>07/03/2026</h4>
    <a href="https://www.reservaentradas.com/sesion/2">19:45</a>
  </div>
  <div>
    <h4>20/03/2026</h4>
    <a href="https://www.reservaentradas.com/sesion/3">21:00</a>
  </div>
</div>
</body></html>`

const embajadoresAgenteDoblada = `<html><body>
<h1>El agente secreto (doblada al español) 🎟</h1>
<div id="parrilla">
  <h3>Cine Embajadores</h3>
  <div>
    <h4>06/03/2026</h4>
    <a href="https://www.reservaentradas.com/sesion/4">16:00</a>
  </div>
</div>
</body></html>`

const embajadoresCocina = `<html><body>
<h1>Espacio Queer: La cocina 🎟</h1>
<div id="parrilla">
  <h3>Cine Embajadores</h3>
  <div>
    <h4>06/03/2026</h4>
    <a href="https://www.reservaentradas.com/sesion/5">20:30</a>
  </div>
</div>
</body></html>`

func TestEmbajadoresFetchFilms(t *testing.T) {
	var catalog string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/madrid/":
			w.Write([]byte(catalog))
		case "/pelicula/el-agente-secreto/":
			w.Write([]byte(embajadoresAgente))
		case "/pelicula/el-agente-secreto-vose/":
			w.Write([]byte(embajadoresAgenteVose))
		case "/pelicula/el-agente-secreto-doblada-al-espanol/":
			w.Write([]byte(embajadoresAgenteDoblada))
		case "/pelicula/la-cocina/":
			w.Write([]byte(embajadoresCocina))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	agenteUrl := srv.URL + "/pelicula/el-agente-secreto/"
	catalog = fmt.Sprintf(embajadoresCatalogTemplate,
		agenteUrl,
		srv.URL+"/pelicula/el-agente-secreto-vose/",
		srv.URL+"/pelicula/el-agente-secreto-doblada-al-espanol/",
		srv.URL+"/pelicula/la-cocina/")

	s := &embajadoresScraper{client: newTestClient(), baseUrl: srv.URL}
	window := DateRange{
		Start: timezone.Date(2026, 3, 5, 0, 0),
		End:   timezone.Date(2026, 3, 11, 0, 0),
	}

	films, err := s.FetchFilms(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, films, 2)

	// three cuts of the same film merge under the base slug
	agente := films[0]
	require.Equal(t, "Cines Embajadores", agente.Theater)
	require.Equal(t, "El agente secreto", agente.Title)
	require.Equal(t, agenteUrl, agente.TheaterFilmLink)
	require.Equal(t, "Kleber Mendonça Filho", agente.Director)
	require.Equal(t, []string{
		"2026-03-06 16:00",
		"2026-03-06 17:00",
		"2026-03-07 19:45",
	}, timestamps(agente))

	require.Equal(t, "dubbed", agente.Dates[0].Version)
	require.Empty(t, agente.Dates[1].Version)
	require.Equal(t, "VOSE", agente.Dates[2].Version)

	require.Equal(t, "Embajadores Glorieta", agente.Dates[0].Location)
	require.Equal(t, "Embajadores Glorieta", agente.Dates[1].Location)
	require.Equal(t, "Embajadores Ercilla", agente.Dates[2].Location)

	// each session links the cut's own detail page
	require.Equal(t, agenteUrl, agente.Dates[1].UrlInfo)
	require.Equal(t, srv.URL+"/pelicula/el-agente-secreto-vose/", agente.Dates[2].UrlInfo)
	require.Equal(t, "https://www.reservaentradas.com/sesion/1", agente.Dates[1].UrlTickets)

	cocina := films[1]
	require.Equal(t, "La cocina", cocina.Title)
	require.Empty(t, cocina.Director)
	require.Equal(t, []string{"2026-03-06 20:30"}, timestamps(cocina))
	require.Empty(t, cocina.Dates[0].Version)
}

func TestEmbajadoresSlugHelpers(t *testing.T) {
	require.Equal(t, "el-agente-secreto-vose", urlSlug("https://cinesembajadores.es/pelicula/el-agente-secreto-vose/"))
	require.Equal(t, "el-agente-secreto", baseSlug("https://cinesembajadores.es/pelicula/el-agente-secreto-vose/"))
	require.Equal(t, "el-agente-secreto", baseSlug("/pelicula/el-agente-secreto-doblada-al-espanol/"))
	require.Equal(t, "la-cocina", baseSlug("/pelicula/la-cocina"))

	require.Equal(t, "VOSE", detectVersion("/pelicula/el-agente-secreto-vose/"))
	require.Equal(t, "dubbed", detectVersion("/pelicula/el-agente-secreto-doblada-al-espanol/"))
	require.Empty(t, detectVersion("/pelicula/la-cocina/"))
}

func TestCleanEmbajadoresTitle(t *testing.T) {
	cases := []struct {
		in     string
		expect string
	}{
		{"Vermiglio (VOSE)", "Vermiglio"},
		{"SESIÓN TETA: Thelma y Louise", "Thelma y Louise"},
		{"Laca y Palomitas especial 2º aniversario: Showgirls", "Showgirls"},
		{"Laca y Palomitas: Priscilla, reina del desierto", "Priscilla, reina del desierto"},
		{"El agente secreto", "El agente secreto"},
	}
	for _, c := range cases {
		require.Equal(t, c.expect, cleanEmbajadoresTitle(c.in), "input: %q", c.in)
	}
}
