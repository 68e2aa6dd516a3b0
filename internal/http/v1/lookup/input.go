package lookup

// LookupInput receives the raw request body so that malformed payloads can be
// answered with the fallback instead of a framework error.
type LookupInput struct {
	RawBody []byte `contentType:"application/json"`
}
