package tui

import (
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// maxInputLen is the maximum number of runes allowed in search and form inputs.
const maxInputLen = 200

// editRune processes a keystroke for inline text editing.
// Handles backspace (rune-aware) and single printable characters.
// Returns the text unchanged for non-printable keys (enter, esc, etc.).
// Input is clamped to maxInputLen runes.
func editRune(text string, key string) string {
	switch key {
	case "backspace":
		if len(text) > 0 {
			runes := []rune(text)
			return string(runes[:len(runes)-1])
		}
		return text
	case "space":
		key = " "
	}
	if utf8.RuneCountInString(key) == 1 {
		return insertText(text, key)
	}
	return text
}

// insertText appends typed or pasted text, clamped to maxInputLen runes.
// Newlines are dropped since every input is a single line.
func insertText(text, s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
	room := maxInputLen - utf8.RuneCountInString(text)
	if room <= 0 {
		return text
	}
	if utf8.RuneCountInString(s) > room {
		s = string([]rune(s)[:room])
	}
	return text + s
}

// editKey applies a key event to text. Rune events, including pastes, insert
// their runes; everything else goes through editRune.
func editKey(text string, msg tea.KeyMsg) string {
	if msg.Type == tea.KeyRunes && !msg.Alt {
		return insertText(text, string(msg.Runes))
	}
	if msg.Type == tea.KeySpace {
		return insertText(text, " ")
	}
	return editRune(text, msg.String())
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// renderInput renders a labelled single-line input. Secret inputs are masked.
func renderInput(label, value, placeholder string, focused, secret bool, animFrame int) string {
	shown := value
	if secret {
		shown = strings.Repeat("•", utf8.RuneCountInString(value))
	}
	prompt := dimStyle.Render(label)
	if focused {
		prompt = inputPromptStyle.Render(label)
	}
	if !focused {
		if value == "" {
			return prompt + " " + inputPlaceholderStyle.Render(placeholder)
		}
		return prompt + " " + dimStyle.Render(shown)
	}
	cursor := " "
	if (animFrame/4)%2 == 0 {
		cursor = accentStyle.Render("█")
	}
	return prompt + " " + inputTextStyle.Render(shown) + cursor
}
