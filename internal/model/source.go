package model

// Source is an attribution attached to a verification
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`

	// Filled by the optional source validator
	Authority  AuthorityTier `json:"authority,omitempty"`
	Accessible *bool         `json:"accessible,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
}

// AuthorityTier represents the classification of source authority
type AuthorityTier string

const (
	TierPrimary   AuthorityTier = "primary"   // Government, regulators, filings, academic institutions
	TierSecondary AuthorityTier = "secondary" // Major publishers, research firms, reputable media
	TierTertiary  AuthorityTier = "tertiary"  // Blogs, vendor pages, everything else
)
