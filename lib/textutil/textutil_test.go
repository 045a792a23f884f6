package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "salaequis", NormalizeName("  Sala \n Equis "))
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName(" Cine ", []string{"cine"}))
	require.True(t, MatchName("Cine / Documental", []string{"cine"}))
	require.False(t, MatchName("Teatro", []string{"cine"}))
}

func TestFoldAccents(t *testing.T) {
	require.Equal(t, "la cronologia del agua", FoldAccents("La Cronología del Agua"))
	require.Equal(t, "manana", FoldAccents("Mañana"))
}

func TestIsUpper(t *testing.T) {
	require.True(t, IsUpper("LA DUDA"))
	require.True(t, IsUpper("F1: LA PELÍCULA"))
	require.False(t, IsUpper("La Duda"))
	require.False(t, IsUpper("1917"))
}

func TestTitleCase(t *testing.T) {
	require.Equal(t, "El Agente Secreto", TitleCase("EL AGENTE SECRETO"))
	require.Equal(t, "Alberto Rodríguez", TitleCase("ALBERTO RODRÍGUEZ"))
	require.Equal(t, "F1: La Película", TitleCase("F1: LA PELÍCULA"))
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "la-cronologia-del-agua", Slugify("La Cronología del Agua"))
	require.Equal(t, "f1", Slugify("F1"))
	require.Equal(t, "los-domingos", Slugify("  Los Domingos!  "))
}
