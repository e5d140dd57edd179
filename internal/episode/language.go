package episode

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// languageName turns a BCP-47 tag into the English display name used in
// prompts ("de-DE" -> "German (Germany)"). English returns "" so default
// prompts stay unchanged.
func languageName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if base, _ := parsed.Base(); base.String() == "en" {
		return ""
	}
	if name := display.English.Tags().Name(parsed); name != "" {
		return name
	}
	return tag
}

func itoa(v int) string { return strconv.Itoa(v) }
