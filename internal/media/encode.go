package media

// EncodeOptions controls how a clip is written to disk. Zero values pick the
// encoder's defaults.
type EncodeOptions struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
	Threads    int
	// Width and Height scale the output when both are set.
	Width  int
	Height int
}

// ProgressFunc is called after each encoded frame with the number of frames
// written so far and the total.
type ProgressFunc func(done, total int)
