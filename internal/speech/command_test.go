package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVoiceTable(t *testing.T) {
	t.Parallel()

	out := []byte(`Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-gb           --/M      English_(Great_Britain) gmw/en            (en 2)
 5  fr-fr           --/M      French_(France)    roa/fr

 broken line
`)
	voices := parseVoiceTable(out)
	require.Len(t, voices, 3)
	assert.Equal(t, Voice{ID: "en-gb", Name: "English (Great Britain)", Locale: "en-gb"}, voices[1])
	assert.Equal(t, "fr", primaryLanguage(voices[2].Locale))
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"-v", "fr-fr", "-s", "262", "--", "-bonjour"}, commandArgs("fr-fr", 1.5, "-bonjour"))
	assert.Equal(t, []string{"-v", "en-us", "-s", "175", "--", "hi"}, commandArgs("en-us", 0, "hi"))
}

func TestCommandEngine_Available(t *testing.T) {
	t.Parallel()

	e := NewCommandEngine("")
	assert.Equal(t, "espeak-ng", e.binary)

	e.lookup = func(string) (string, error) { return "", errors.New("not found") }
	assert.False(t, e.Available())

	e.lookup = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	assert.True(t, e.Available())
}

func TestCommandEngine_StartHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCommandEngine("espeak-ng").Start(ctx, Utterance{Text: "hi", Locale: "en-US"})
	require.ErrorIs(t, err, context.Canceled)
}
