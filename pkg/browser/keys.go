package browser

import (
	"fmt"
	"strings"
)

// Modifier bitmask values, matching the remote-debugging protocol.
const (
	ModifierAlt   = 1
	ModifierCtrl  = 2
	ModifierMeta  = 4
	ModifierShift = 8
)

// KeyDef describes one symbolic key as the protocol expects it.
type KeyDef struct {
	Key           string
	Code          string
	KeyCode       int
	Text          string
	ShiftRequired bool
}

// keyDefs maps symbolic key names (lowercase) to their protocol definition.
var keyDefs = map[string]KeyDef{
	"enter":     {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"return":    {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"tab":       {Key: "Tab", Code: "Tab", KeyCode: 9},
	"backspace": {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"delete":    {Key: "Delete", Code: "Delete", KeyCode: 46},
	"escape":    {Key: "Escape", Code: "Escape", KeyCode: 27},
	"esc":       {Key: "Escape", Code: "Escape", KeyCode: 27},
	"space":     {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
	"up":        {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"down":      {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"left":      {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"right":     {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"arrowup":   {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"arrowdown": {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"arrowleft": {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"arrowright": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"home":      {Key: "Home", Code: "Home", KeyCode: 36},
	"end":       {Key: "End", Code: "End", KeyCode: 35},
	"pageup":    {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"pagedown":  {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"f1":        {Key: "F1", Code: "F1", KeyCode: 112},
	"f2":        {Key: "F2", Code: "F2", KeyCode: 113},
	"f3":        {Key: "F3", Code: "F3", KeyCode: 114},
	"f4":        {Key: "F4", Code: "F4", KeyCode: 115},
	"f5":        {Key: "F5", Code: "F5", KeyCode: 116},
	"f6":        {Key: "F6", Code: "F6", KeyCode: 117},
	"f7":        {Key: "F7", Code: "F7", KeyCode: 118},
	"f8":        {Key: "F8", Code: "F8", KeyCode: 119},
	"f9":        {Key: "F9", Code: "F9", KeyCode: 120},
	"f10":       {Key: "F10", Code: "F10", KeyCode: 121},
	"f11":       {Key: "F11", Code: "F11", KeyCode: 122},
	"f12":       {Key: "F12", Code: "F12", KeyCode: 123},
}

// shiftedSymbols are the printable characters that require shift on a US
// layout.
const shiftedSymbols = `~!@#$%^&*()_+{}|:"<>?`

// charKeyDef resolves a printable character to a key definition, reporting
// whether the character has a mapping at all. Characters without one are
// typed via raw text insertion instead.
func charKeyDef(ch rune) (KeyDef, bool) {
	switch {
	case ch == '\n' || ch == '\r':
		return keyDefs["enter"], true
	case ch == ' ':
		return keyDefs["space"], true
	case ch >= 'a' && ch <= 'z':
		return KeyDef{
			Key:     string(ch),
			Code:    "Key" + strings.ToUpper(string(ch)),
			KeyCode: int(ch) - 32,
			Text:    string(ch),
		}, true
	case ch >= 'A' && ch <= 'Z':
		return KeyDef{
			Key:           string(ch),
			Code:          "Key" + string(ch),
			KeyCode:       int(ch),
			Text:          string(ch),
			ShiftRequired: true,
		}, true
	case ch >= '0' && ch <= '9':
		return KeyDef{
			Key:     string(ch),
			Code:    "Digit" + string(ch),
			KeyCode: int(ch),
			Text:    string(ch),
		}, true
	case ch < 128 && strings.ContainsRune(shiftedSymbols, ch):
		return KeyDef{
			Key:           string(ch),
			Text:          string(ch),
			ShiftRequired: true,
		}, true
	case ch < 128 && strings.ContainsRune(`-=[]\;',./`+"`", ch):
		return KeyDef{
			Key:  string(ch),
			Text: string(ch),
		}, true
	}
	return KeyDef{}, false
}

// KeyChord is a parsed modifier+key combination.
type KeyChord struct {
	Modifiers int
	Key       KeyDef

	// EditCommand is a native text-editing command to attach to the key
	// event, populated only on the mac platform variant.
	EditCommand string
}

// macEditCommands maps (modifiers, key) to the native edit command macOS
// text fields expect alongside the key event. Without the command the field
// receives the key but does not perform the edit.
var macEditCommands = map[string]string{
	"meta+a":         "selectAll",
	"meta+c":         "copy",
	"meta+v":         "paste",
	"meta+x":         "cut",
	"meta+z":         "undo",
	"meta+backspace": "deleteToBeginningOfLine",
	"meta+left":      "moveToBeginningOfLine",
	"meta+right":     "moveToEndOfLine",
	"meta+up":        "moveToBeginningOfDocument",
	"meta+down":      "moveToEndOfDocument",
	"alt+backspace":  "deleteWordBackward",
	"alt+left":       "moveWordLeft",
	"alt+right":      "moveWordRight",
}

// ParseKeyChord parses a "+"-separated chord like "ctrl+shift+t" into a
// modifier bitmask and a base key. Modifier tokens are case-insensitive;
// cmd, meta, and win all map to the meta modifier. When mac is true, a
// platform edit command is attached for chords that have one.
func ParseKeyChord(chord string, mac bool) (KeyChord, error) {
	tokens := strings.Split(chord, "+")
	if len(tokens) == 0 {
		return KeyChord{}, fmt.Errorf("empty key chord")
	}

	var result KeyChord
	var baseToken string
	for i, token := range tokens {
		token = strings.TrimSpace(token)
		lower := strings.ToLower(token)
		switch lower {
		case "ctrl", "control":
			result.Modifiers |= ModifierCtrl
		case "alt", "option", "opt":
			result.Modifiers |= ModifierAlt
		case "shift":
			result.Modifiers |= ModifierShift
		case "cmd", "meta", "win", "super":
			result.Modifiers |= ModifierMeta
		default:
			if i != len(tokens)-1 {
				return KeyChord{}, fmt.Errorf("unknown modifier %q in chord %q", token, chord)
			}
			baseToken = token
		}
	}

	if baseToken == "" {
		return KeyChord{}, fmt.Errorf("key chord %q has no base key", chord)
	}

	lower := strings.ToLower(baseToken)
	if def, ok := keyDefs[lower]; ok {
		result.Key = def
	} else if len([]rune(baseToken)) == 1 {
		def, ok := charKeyDef([]rune(lower)[0])
		if !ok {
			return KeyChord{}, fmt.Errorf("unmapped key %q in chord %q", baseToken, chord)
		}
		result.Key = def
	} else {
		return KeyChord{}, fmt.Errorf("unknown key %q in chord %q", baseToken, chord)
	}

	if result.Modifiers&ModifierShift != 0 {
		result.Key.ShiftRequired = true
	}

	if mac {
		result.EditCommand = macEditCommands[editCommandKey(result.Modifiers, lower)]
	}

	return result, nil
}

// editCommandKey builds the lookup key for the mac edit-command table.
func editCommandKey(modifiers int, baseKey string) string {
	var parts []string
	if modifiers&ModifierMeta != 0 {
		parts = append(parts, "meta")
	}
	if modifiers&ModifierAlt != 0 {
		parts = append(parts, "alt")
	}
	if modifiers&ModifierCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	parts = append(parts, baseKey)
	return strings.Join(parts, "+")
}
