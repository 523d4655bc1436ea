package bot

import "math/rand/v2"

// names is the cosmetic pool used when no bot profile can be fetched.
var names = []string{
	"LetterLynx", "WordWarden", "QuietQuill", "VowelVixen", "GlyphGhost",
	"LexiLoop", "SyllableSam", "InkIbis", "ProseParrot", "RuneRaven",
	"TileTamer", "ClueCrane", "SpellSparrow", "GuessGecko", "FontFox",
}

// RandomName returns a display name for an anonymous bot.
func RandomName(r *rand.Rand) string {
	return names[r.IntN(len(names))]
}
