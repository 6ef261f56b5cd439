package catalogs

// Builtin returns the catalogs shipped in configs/, for tools and tests that
// run without a config directory.
func Builtin() *Catalogs {
	c, err := New(builtinBlocks, builtinItems)
	if err != nil {
		panic(err)
	}
	return c
}

var builtinBlocks = []BlockDef{
	{ID: Air},
	{ID: "STONE", Solid: true, Breakable: true, Hardness: 1.5, DropsItem: "STONE"},
	{ID: "DIRT", Solid: true, Breakable: true, Hardness: 0.5, DropsItem: "DIRT"},
	{ID: "GRAVEL", Solid: true, Breakable: true, Hardness: 0.6, DropsItem: "GRAVEL"},
	{ID: "PLANK", Solid: true, Breakable: true, Hardness: 2, DropsItem: "PLANK"},
	{ID: "BRICK", Solid: true, Breakable: true, Hardness: 2, DropsItem: "BRICK"},
	{ID: "GLASS", Solid: true, Breakable: true, Hardness: 0.3},
	{ID: "BEDROCK", Solid: true, Breakable: false, Hardness: -1},
	{ID: "WATER", Fluid: true},
	{ID: "LAVA", Fluid: true},
}

var builtinItems = []ItemDef{
	{ID: "STONE", Kind: "BLOCK", PlaceAs: "STONE"},
	{ID: "DIRT", Kind: "BLOCK", PlaceAs: "DIRT"},
	{ID: "GRAVEL", Kind: "BLOCK", PlaceAs: "GRAVEL"},
	{ID: "PLANK", Kind: "BLOCK", PlaceAs: "PLANK"},
	{ID: "BRICK", Kind: "BLOCK", PlaceAs: "BRICK"},
	{ID: "GLASS", Kind: "BLOCK", PlaceAs: "GLASS"},
	{ID: "WATER_BUCKET", Kind: "BUCKET", PlaceAs: "WATER"},
	{ID: "LAVA_BUCKET", Kind: "BUCKET", PlaceAs: "LAVA"},
	{ID: "STICK", Kind: "MATERIAL"},
}
