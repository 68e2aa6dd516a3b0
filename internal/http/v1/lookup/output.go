package lookup

// LookupOutput is the response wrapper for POST /lookup.
type LookupOutput struct {
	Body LookupResult
}
