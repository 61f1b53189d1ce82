package utils

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a "%s%" LIKE pattern with s taken literally.
// Pair it with ESCAPE '\' in the query.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
