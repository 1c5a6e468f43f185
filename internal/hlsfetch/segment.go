package hlsfetch

// InitSectionRef identifies an EXT-X-MAP initialization section by value:
// two references with the same URI and byte range are the same identity,
// per spec.md §3's Init Section data model.
type InitSectionRef struct {
	URI       string
	ByteRange string
}

// Segment is one media-playlist entry, carrying everything the pipeline
// needs without reaching back into the grafov/m3u8 types it was built
// from.
type Segment struct {
	Index         int
	URI           string
	BaseURI       string
	ByteRange     string
	InitSection   *InitSectionRef
	Keys          []KeyDescriptor
	Discontinuity bool
}

// InitSection is the cached (identity, bytes) pair the pipeline keeps for
// the current EXT-X-MAP, per spec.md §3.
type InitSection struct {
	Identity InitSectionRef
	Bytes    []byte
}
