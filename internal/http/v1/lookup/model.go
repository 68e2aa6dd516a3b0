package lookup

// LookupRequest is the JSON body expected by POST /lookup.
type LookupRequest struct {
	Phone string `json:"phone" doc:"Phone number including country code; non-digits are ignored" example:"+55 11 99999-8888"`
}

// LookupResult is the only success shape of POST /lookup. Its shape never
// varies: upstream failures render the fallback image with IsPhotoPrivate set.
type LookupResult struct {
	Success        bool   `json:"success"          doc:"Always true for lookups that passed validation"`
	Result         string `json:"result"           doc:"Profile photo URL, or the placeholder URL when private or unavailable" format:"uri"`
	IsPhotoPrivate bool   `json:"is_photo_private" doc:"True when result is the placeholder image"`
}
