package apps

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns free text into an ILIKE pattern matching it
// anywhere. LIKE metacharacters in the text match literally.
func ContainsPattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
