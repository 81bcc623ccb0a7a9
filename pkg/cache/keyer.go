package cache

// Keyer generates cache keys.
type Keyer interface {
	// CollapseKey is the key of a collapse result for a table.
	CollapseKey(tableHash string, opts CollapseKeyOpts) string

	// RenderKey is the key of a rendered table artifact.
	RenderKey(tableHash string, opts RenderKeyOpts) string
}

// CollapseKeyOpts are the options that change a collapse result.
type CollapseKeyOpts struct {
	Thresh         float64 `json:"thresh"`
	MainstemThresh float64 `json:"mainstem_thresh"`
	AddCategory    bool    `json:"add_category"`
	Exclude        []int64 `json:"exclude,omitempty"`
}

// RenderKeyOpts are the options that change a rendered artifact.
type RenderKeyOpts struct {
	Format      string `json:"format"`
	ShowRemoved bool   `json:"show_removed"`
	Detailed    bool   `json:"detailed"`
}

// DefaultKeyer builds keys of the form "kind:sha256(parts)".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key generator.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// CollapseKey hashes the table hash together with the options.
func (DefaultKeyer) CollapseKey(tableHash string, opts CollapseKeyOpts) string {
	return hashKey("collapse", tableHash, opts)
}

// RenderKey hashes the table hash together with the options.
func (DefaultKeyer) RenderKey(tableHash string, opts RenderKeyOpts) string {
	return hashKey("render", tableHash, opts)
}
