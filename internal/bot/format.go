package bot

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// EscapeMarkdown escapes the characters reserved by Telegram's MarkdownV2.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// normalizePhone formats a phone number as E.164. Numbers without a leading
// plus are read as international unless a default region is set. Input that
// does not parse is returned trimmed.
func normalizePhone(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	candidate := trimmed
	if region == "" && !strings.HasPrefix(candidate, "+") {
		candidate = "+" + candidate
	}

	number, err := phonenumbers.Parse(candidate, region)
	if err != nil {
		return trimmed
	}
	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}
