package layout

// DefaultTheme is used when the requested theme is unknown.
const DefaultTheme = "fruits"

// themes map a pair ID (1-based) to an icon name. Purely cosmetic: the
// client uses these to draw cards, nothing downstream reads them.
var themes = map[string][]string{
	"fruits": {
		"cherry", "lemon", "grape", "melon", "orange",
		"peach", "plum", "strawberry", "banana", "kiwi",
		"mango", "pear", "apple", "fig", "lime", "coconut",
	},
	"animals": {
		"cat", "dog", "fox", "owl", "bear",
		"wolf", "hare", "deer", "lion", "frog",
		"crow", "seal", "bat", "elk", "ram", "hen",
	},
	"gems": {
		"ruby", "topaz", "jade", "opal", "pearl",
		"amber", "onyx", "quartz", "garnet", "beryl",
		"agate", "zircon", "spinel", "coral", "ivory", "jasper",
	},
}

// IconSet returns the icon names for the first pairCount pairs of a theme,
// falling back to DefaultTheme for unknown names. Index i holds the icon
// for pair ID i+1.
func IconSet(theme string, pairCount int) (string, []string) {
	icons, ok := themes[theme]
	if !ok {
		theme = DefaultTheme
		icons = themes[theme]
	}
	if pairCount > len(icons) {
		pairCount = len(icons)
	}
	out := make([]string, pairCount)
	copy(out, icons[:pairCount])
	return theme, out
}
