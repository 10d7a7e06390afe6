package types

// Search modes accepted by the downstream provider. The gateway forwards
// unrecognized modes as-is and lets the provider reject them, so this list
// is informational rather than a closed enumeration.
const (
	ModeAuto         = "auto"
	ModePro          = "pro"
	ModeReasoning    = "reasoning"
	ModeDeepResearch = "deep research"
)

// Defaults applied during request normalization.
const (
	DefaultMode     = ModeAuto
	DefaultLanguage = "en-US"
	DefaultSource   = "web"
)

// FileEntry is one normalized file attachment: a name plus fully decoded
// bytes. Base64 and multipart shapes are resolved before a FileEntry exists.
type FileEntry struct {
	Name    string
	Content []byte
}

// CanonicalRequest is the validated, defaulted representation of an inbound
// search request, independent of whether it arrived as JSON or multipart.
type CanonicalRequest struct {
	Query     string
	Mode      string
	Model     string
	Sources   []string
	Language  string
	Incognito bool
	Stream    bool

	// FollowUp is passed through to the provider untouched.
	FollowUp any

	Files []FileEntry
}
