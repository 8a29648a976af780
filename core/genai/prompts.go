package genai

import (
	"fmt"
	"strings"
)

// MaxPromptLength is the upper bound for a music prompt.
const MaxPromptLength = 1000

const promptSystemPrompt = `You are an expert prompt engineer for an AI music generator. Write one detailed, descriptive prompt that turns the user's vision into music. The prompt is a single continuous block of text, never a list, and never longer than 1000 characters.

Capture the sonic identity of the named artist. When lyrics are given, let their mood, story and imagery drive the instrumentation, tempo and production: a lonely walk through a neon city suggests shimmering synth pads like reflections on wet pavement over a slow, pensive drum machine.

Use rich adjectives and technical terms a model can interpret. No markdown. Return only the prompt text.`

const lyricsSystemPrompt = `You are an expert songwriter. Write an original, structured song in the style of the named artist about the given theme. Show, don't tell: paint scenes with sensory detail, imagery and metaphor instead of naming emotions.

Structure the song as [Verse 1], [Chorus], [Verse 2], [Bridge] and a final [Chorus]. Tell a small story the listener can picture. Keep the chorus memorable; it carries the core idea. Write honestly in the artist's voice, vocabulary and recurring themes.

Label every section with its bracketed name on its own line. Return only the lyrics with no commentary.`

// LyricSections is the section order the lyrics follow.
var LyricSections = []string{"[Verse 1]", "[Chorus]", "[Verse 2]", "[Bridge]", "[Chorus]"}

func promptUserMessage(artist, vibe, lyrics string) string {
	var b strings.Builder
	b.WriteString("Generate a music prompt based on these details:\n")
	fmt.Fprintf(&b, "- Artist Style: %s\n", artist)
	fmt.Fprintf(&b, "- Vibe/Theme: %s\n", vibe)
	if lyrics = strings.TrimSpace(lyrics); lyrics != "" {
		fmt.Fprintf(&b, "- Lyrics to Inspire the Music: [LYRICS]%s[/LYRICS]\n", lyrics)
	}
	b.WriteString(`
Create a detailed prompt that includes:
- Genre (e.g. '80s synth-pop with a modern darkwave twist')
- Mood (e.g. 'nostalgic, melancholic, with a driving beat')
- Instrumentation (e.g. 'LinnDrum, Juno-106 pads, chorused guitar')
- Vocal Style (e.g. 'male baritone, breathy, layered harmonies')
- Tempo (e.g. 'medium tempo, around 120 bpm')
- Production (e.g. 'gated reverb on the snare, analog warmth')
`)
	return b.String()
}

func lyricsUserMessage(artist, vibe string) string {
	return fmt.Sprintf(`Artist to emulate: %s
Vibe/Theme for the song: %s

Write a complete song with two verses, a chorus and a bridge that tells a story and paints a picture, just as %s would.`, artist, vibe, artist)
}

// CoverArtPrompt builds the image prompt for a track's cover. Long titles
// are replaced by the artist style as the display text.
func CoverArtPrompt(title, artistStyle, prompt, vibe string) string {
	display := title
	if len([]rune(title)) > 20 {
		display = artistStyle
	}
	if vibe == "" {
		vibe = "general"
	}
	return fmt.Sprintf(`Create an album cover art image. The text "%s" should be prominently centered in bold, stylish typography. The background and overall aesthetic should be in the style of the artist %s. Incorporate elements that reflect the musical style of %s. Make it visually striking and relevant to the music genre, with colors and imagery that capture the essence of a song inspired by %s.`,
		display, vibe, artistStyle, prompt)
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
