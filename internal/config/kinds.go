package config

import "fmt"

// Resource kinds the extract command can export
const (
	KindSprites  = "sprites"
	KindTextures = "textures"
	KindAudio    = "audio"
	KindFonts    = "fonts"
)

// AllKinds is the default export selection
var AllKinds = []string{KindSprites, KindTextures, KindAudio, KindFonts}

var validKinds = map[string]bool{
	KindSprites:  true,
	KindTextures: true,
	KindAudio:    true,
	KindFonts:    true,
}

// validateKinds ensures every requested kind is exportable
// If kinds is empty, returns nil (nothing will be exported)
func validateKinds(kinds []string) error {
	for _, kind := range kinds {
		if kind == "" {
			return fmt.Errorf("kind cannot be empty")
		}

		if !validKinds[kind] {
			return fmt.Errorf("unsupported kind '%s': supported kinds are sprites, textures, audio, fonts", kind)
		}
	}

	return nil
}
