package catalog

// FallbackImage is used whenever an image key has no bundled asset.
const FallbackImage = "cafe_milk"

var bundledImages = map[string]struct{}{
	"cafe_noir":          {},
	"cafe_chocolat":      {},
	"cappuccino_cremeux": {},
	"cafe_milk":          {},
	"the_menthe":         {},
	"black_the":          {},
	"green_the":          {},
	"cupcake":            {},
	"ghriba":             {},
	"cake_chocolat":      {},
	"p_fraise":           {},
}

// ResolveImage maps an opaque image key to a bundled asset key.
func ResolveImage(key string) string {
	if _, ok := bundledImages[key]; ok {
		return key
	}
	return FallbackImage
}
