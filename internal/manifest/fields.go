package manifest

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownTitle is used when a row carries no recognizable title column.
const UnknownTitle = "Unknown"

var (
	titleAliases = foldAll("title", "título", "titulo", "titre", "article", "artigo", "nome")
	pageAliases  = foldAll("pages", "páginas", "paginas", "page", "página", "pagina", "pp", "folios")
)

// fold lowercases s and strips diacritics so "Título" and "titulo" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(strings.TrimSpace(out))
}

func foldAll(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[fold(n)] = struct{}{}
	}
	return m
}

// field returns the first non-empty value among columns whose folded name is in aliases.
// Columns are scanned in sheet order.
func field(columns []string, values map[string]string, aliases map[string]struct{}) string {
	for _, c := range columns {
		if _, ok := aliases[fold(c)]; !ok {
			continue
		}
		if v := strings.TrimSpace(values[c]); v != "" {
			return v
		}
	}
	return ""
}

// Title returns the row's title, or UnknownTitle.
func Title(columns []string, values map[string]string) string {
	if t := field(columns, values, titleAliases); t != "" {
		return t
	}
	return UnknownTitle
}

// Pages returns the row's page range, or "".
func Pages(columns []string, values map[string]string) string {
	return field(columns, values, pageAliases)
}
