package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyChordModifiers(t *testing.T) {
	tests := []struct {
		chord     string
		modifiers int
		key       string
	}{
		{"ctrl+a", ModifierCtrl, "a"},
		{"CTRL+A", ModifierCtrl, "a"},
		{"alt+tab", ModifierAlt, "Tab"},
		{"shift+tab", ModifierShift, "Tab"},
		{"cmd+a", ModifierMeta, "a"},
		{"meta+a", ModifierMeta, "a"},
		{"win+a", ModifierMeta, "a"},
		{"ctrl+shift+t", ModifierCtrl | ModifierShift, "t"},
		{"ctrl+alt+shift+meta+f5", ModifierCtrl | ModifierAlt | ModifierShift | ModifierMeta, "F5"},
		{"enter", 0, "Enter"},
	}

	for _, tt := range tests {
		parsed, err := ParseKeyChord(tt.chord, false)
		require.NoError(t, err, "chord %q", tt.chord)
		assert.Equal(t, tt.modifiers, parsed.Modifiers, "modifiers for %q", tt.chord)
		assert.Equal(t, tt.key, parsed.Key.Key, "key for %q", tt.chord)
	}
}

func TestParseKeyChordErrors(t *testing.T) {
	for _, chord := range []string{"", "ctrl+", "ctrl+bogus+a", "notakey"} {
		_, err := ParseKeyChord(chord, false)
		assert.Error(t, err, "chord %q", chord)
	}
}

func TestParseKeyChordMacEditCommands(t *testing.T) {
	tests := []struct {
		chord   string
		command string
	}{
		{"cmd+a", "selectAll"},
		{"cmd+c", "copy"},
		{"cmd+v", "paste"},
		{"cmd+backspace", "deleteToBeginningOfLine"},
		{"cmd+left", "moveToBeginningOfLine"},
		{"alt+backspace", "deleteWordBackward"},
		{"ctrl+a", ""}, // no command for this chord
	}

	for _, tt := range tests {
		parsed, err := ParseKeyChord(tt.chord, true)
		require.NoError(t, err, "chord %q", tt.chord)
		assert.Equal(t, tt.command, parsed.EditCommand, "edit command for %q", tt.chord)
	}
}

func TestParseKeyChordEditCommandsOnlyOnMac(t *testing.T) {
	parsed, err := ParseKeyChord("cmd+a", false)
	require.NoError(t, err)
	assert.Empty(t, parsed.EditCommand)
}

func TestCharKeyDef(t *testing.T) {
	// lowercase: no shift
	def, ok := charKeyDef('a')
	require.True(t, ok)
	assert.False(t, def.ShiftRequired)
	assert.Equal(t, "KeyA", def.Code)

	// uppercase: shift asserted
	def, ok = charKeyDef('A')
	require.True(t, ok)
	assert.True(t, def.ShiftRequired)

	// shifted symbols
	for _, ch := range "!@#$%^&*()_+{}|:\"<>?~" {
		def, ok := charKeyDef(ch)
		require.True(t, ok, "char %q", ch)
		assert.True(t, def.ShiftRequired, "char %q should require shift", ch)
	}

	// unshifted symbols
	for _, ch := range "-=[];',./" {
		def, ok := charKeyDef(ch)
		require.True(t, ok, "char %q", ch)
		assert.False(t, def.ShiftRequired, "char %q should not require shift", ch)
	}

	// newline maps to Enter
	def, ok = charKeyDef('\n')
	require.True(t, ok)
	assert.Equal(t, "Enter", def.Key)
	def, ok = charKeyDef('\r')
	require.True(t, ok)
	assert.Equal(t, "Enter", def.Key)

	// characters with no mapping fall back to raw insertion
	_, ok = charKeyDef('é')
	assert.False(t, ok)
	_, ok = charKeyDef('中')
	assert.False(t, ok)
}
