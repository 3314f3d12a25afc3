package model

import "strings"

type Color string

const (
	ColorWhite  Color = "white"
	ColorYellow Color = "yellow"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPink   Color = "pink"
)

// Palette lists the note colors in the order the toolbar offers them.
var Palette = []Color{ColorWhite, ColorYellow, ColorBlue, ColorGreen, ColorPink}

// Older snapshots stored the stylesheet class instead of the token.
var legacyColors = map[string]Color{
	"bg-white":      ColorWhite,
	"bg-yellow-100": ColorYellow,
	"bg-blue-100":   ColorBlue,
	"bg-green-100":  ColorGreen,
	"bg-pink-100":   ColorPink,
}

// ParseColor maps a palette token (or a legacy class name) to a Color. An
// empty string selects the first palette entry.
func ParseColor(s string) (Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Palette[0], true
	}
	for _, c := range Palette {
		if string(c) == s {
			return c, true
		}
	}
	c, ok := legacyColors[s]
	return c, ok
}
