package common

import (
	"reflect"
	"testing"
)

func TestCleanPersonName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hugo, Victor. Auteur du texte", "Hugo, Victor"},
		{"Doré, Gustave. Illustrateur", "Doré, Gustave"},
		{"Hugo, Victor (1802-1885). Auteur du texte", "Hugo, Victor"},
		{"Camus, Albert (1913-1960)", "Camus, Albert"},
		{"Baudelaire, Charles. Traducteur", "Baudelaire, Charles"},
		{"Gallimard. Éditeur scientifique", "Gallimard"},
		{"Frank  Herbert", "Frank Herbert"},
		{"  ", ""},
		{"Plain Name", "Plain Name"},
	}
	for _, tt := range tests {
		if got := CleanPersonName(tt.in); got != tt.want {
			t.Errorf("CleanPersonName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedupeAuthors(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"case insensitive", []string{"Frank Herbert", "frank herbert", "Brian Herbert"}, []string{"Frank Herbert", "Brian Herbert"}},
		{"drops blanks", []string{"", "  ", "Frank Herbert"}, []string{"Frank Herbert"}},
		{"all blank", []string{"", "  "}, nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		if got := DedupeAuthors(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: DedupeAuthors(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestYearOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"impr. 2010", "2010"},
		{"2001-05-03", "2001"},
		{"cop. 1965", "1965"},
		{"circa 200", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := YearOf(tt.in); got != tt.want {
			t.Errorf("YearOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
