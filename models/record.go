package models

import "encoding/json"

// Platform names a social network tracked on a BusinessRecord.
type Platform string

const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	YouTube   Platform = "youtube"
	TikTok    Platform = "tiktok"
)

// Platforms lists every tracked platform in report column order.
var Platforms = []Platform{Facebook, Instagram, Twitter, LinkedIn, YouTube, TikTok}

// BusinessRecord is one business discovered on a detail page.
//
// SourceURL is the canonical detail-page URL and the dedup key. Every other
// field is known or unknown, never absent.
type BusinessRecord struct {
	SourceURL string             `json:"source_url"`
	Name      Field              `json:"name"`
	Phone     Field              `json:"phone"`
	Email     Field              `json:"email"`
	Website   Field              `json:"website"`
	Address   Field              `json:"address"`
	Category  Field              `json:"category"`
	Rating    Field              `json:"rating"`
	Reviews   Field              `json:"reviews"`
	Hours     Field              `json:"hours"`
	Socials   map[Platform]Field `json:"socials"`
}

// NewBusinessRecord returns a record for sourceURL with every field unknown.
func NewBusinessRecord(sourceURL string) BusinessRecord {
	socials := make(map[Platform]Field, len(Platforms))
	for _, p := range Platforms {
		socials[p] = Unknown
	}
	return BusinessRecord{SourceURL: sourceURL, Socials: socials}
}

// Social returns the profile URL for p, unknown when not found.
func (r BusinessRecord) Social(p Platform) Field {
	return r.Socials[p]
}

// SetSocial records a profile URL for p.
func (r *BusinessRecord) SetSocial(p Platform, f Field) {
	if r.Socials == nil {
		r.Socials = make(map[Platform]Field, len(Platforms))
	}
	r.Socials[p] = f
}

// MissingSocial reports whether any tracked platform is unknown.
func (r BusinessRecord) MissingSocial() bool {
	for _, p := range Platforms {
		if !r.Social(p).IsKnown() {
			return true
		}
	}
	return false
}

// Retainable reports whether the record may be kept in a result set.
func (r BusinessRecord) Retainable() bool {
	return r.Name.IsKnown()
}

// Clone returns a copy that shares no mutable state with r.
func (r BusinessRecord) Clone() BusinessRecord {
	out := r
	out.Socials = make(map[Platform]Field, len(r.Socials))
	for k, v := range r.Socials {
		out.Socials[k] = v
	}
	return out
}

// UnmarshalJSON also accepts the flat legacy layout, where the identifier is
// stored as "files_url" and each platform is a top-level key.
func (r *BusinessRecord) UnmarshalJSON(data []byte) error {
	type plain BusinessRecord
	var aux struct {
		plain
		FilesURL  string `json:"files_url"`
		Facebook  Field  `json:"facebook"`
		Instagram Field  `json:"instagram"`
		Twitter   Field  `json:"twitter"`
		LinkedIn  Field  `json:"linkedin"`
		YouTube   Field  `json:"youtube"`
		TikTok    Field  `json:"tiktok"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	out := BusinessRecord(aux.plain)
	if out.SourceURL == "" {
		out.SourceURL = aux.FilesURL
	}
	flat := map[Platform]Field{
		Facebook:  aux.Facebook,
		Instagram: aux.Instagram,
		Twitter:   aux.Twitter,
		LinkedIn:  aux.LinkedIn,
		YouTube:   aux.YouTube,
		TikTok:    aux.TikTok,
	}
	socials := make(map[Platform]Field, len(Platforms))
	for _, p := range Platforms {
		socials[p] = out.Socials[p].Or(flat[p])
	}
	out.Socials = socials
	*r = out
	return nil
}
