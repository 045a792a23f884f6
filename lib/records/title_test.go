package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		in       string
		prefixes []string
		expect   string
	}{
		{"AETERNA: The Descent (VOSE)", []string{"AETERNA:"}, "The Descent"},
		{"Hamnet (vose)", nil, "Hamnet"},
		{"F1 - VOSE", nil, "F1"},
		{"Los domingos", nil, "Los domingos"},
		{"Sirat (V.O.S.E.)", nil, "Sirat"},
		{"Wicked (DOBLADA AL ESPAÑOL)", nil, "Wicked"},
		{"Jueves de Imprescindibles: Taxi Driver (VOSE)", []string{"Jueves de Imprescindibles:"}, "Taxi Driver"},
		// only the first matching prefix is stripped
		{"Anime Day: Akira", []string{"Verdi Club:", "Anime Day:"}, "Akira"},
	}
	for _, c := range cases {
		require.Equal(t, c.expect, CleanTitle(c.in, c.prefixes...), "input: %q", c.in)
	}
}

func TestCleanTitleEmptyResult(t *testing.T) {
	// a bare session label is not a film title
	require.Empty(t, CleanTitle("AETERNA:", "AETERNA:"))
	require.Empty(t, CleanTitle("(VOSE)"))
}
