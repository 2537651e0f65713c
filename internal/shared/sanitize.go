package shared

import "strings"

// fsReplacements maps characters that are unsafe in file names to fullwidth
// lookalikes, so artist and album titles survive as directory names without
// losing information.
var fsReplacements = strings.NewReplacer(
	":", "꞉",
	"/", "／",
	"\\", "⧹",
	`"`, "＂",
	"*", "⋆",
	"<", "＜",
	">", "＞",
	"?", "？",
	"|", "∣",
)

// SanitizeFileName returns s with filesystem-unsafe characters replaced.
// Names ending in a dot or space get a trailing underscore, since Windows
// strips those endings.
func SanitizeFileName(s string) string {
	s = fsReplacements.Replace(s)
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, " ") {
		s += "_"
	}
	return s
}
