package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/wa-photo-proxy/internal/http/v1/lookup"
	"github.com/janisto/wa-photo-proxy/internal/service/photo"
)

// DocsPath is where the interactive API docs are served.
const DocsPath = "/api-docs"

// NewConfig returns the huma configuration used by the server and the CLI
// integration tests.
func NewConfig(title, version string) huma.Config {
	cfg := huma.DefaultConfig(title, version)
	cfg.DocsPath = DocsPath
	// Clients parse the lookup payloads as-is, so no $schema link is injected
	// into response bodies.
	cfg.CreateHooks = nil
	return cfg
}

// AdvertiseCBOR adds the CBOR content type next to JSON for every request and
// response body described in the OpenAPI document.
func AdvertiseCBOR(api huma.API) {
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation,
		func(_ *huma.OpenAPI, op *huma.Operation) {
			if op.RequestBody != nil && op.RequestBody.Content != nil {
				if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
					op.RequestBody.Content["application/cbor"] = jsonContent
				}
			}
			for _, resp := range op.Responses {
				if resp.Content == nil {
					continue
				}
				if jsonContent, ok := resp.Content["application/json"]; ok {
					resp.Content["application/cbor"] = jsonContent
				}
			}
		},
	)
}

// Register wires all HTTP routes into the provided API router.
func Register(api huma.API, resolver *photo.Resolver) {
	lookup.Register(api, resolver)
}
