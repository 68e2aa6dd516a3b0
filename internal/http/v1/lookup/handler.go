package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	apiinternal "github.com/janisto/wa-photo-proxy/internal/api"
	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
	"github.com/janisto/wa-photo-proxy/internal/service/photo"
)

// Path is where the lookup operation is mounted.
const Path = "/lookup"

const lookupDescription = "Normalizes the phone number, queries the contact lookup service and returns the " +
	"profile photo URL. Upstream failures are never surfaced: they answer 200 with the placeholder image."

// errUnusableBody marks bodies that carry no phone the lookup can work with.
// They are answered with the fallback.
var errUnusableBody = errors.New("request body has no usable phone")

const (
	preflightMethods = "POST, OPTIONS"
	preflightHeaders = "Content-Type"
)

// Register wires the lookup routes into the provided API router.
func Register(api huma.API, resolver *photo.Resolver) {
	registry := api.OpenAPI().Components.Schemas
	requestBody := &huma.RequestBody{}
	huma.Register(api, huma.Operation{
		OperationID:      "lookup-photo",
		Method:           http.MethodPost,
		Path:             Path,
		Summary:          "Look up a WhatsApp profile photo",
		Description:      lookupDescription,
		Tags:             []string{"Lookup"},
		RequestBody:      requestBody,
		SkipValidateBody: true,
		Errors:           []int{http.StatusBadRequest},
	}, lookupHandler(resolver))

	// A RawBody input is registered as a required binary body. Empty bodies
	// must reach the handler and the document describes the phone object. The
	// CBOR entry shares the JSON media type, so it is updated in place.
	requestBody.Required = false
	if mt := requestBody.Content["application/json"]; mt != nil {
		mt.Schema = registry.Schema(reflect.TypeFor[LookupRequest](), true, "LookupRequest")
	}

	// Preflight is answered outside huma so the allow lists are exact and the
	// body stays empty.
	api.Adapter().Handle(&huma.Operation{
		OperationID: "lookup-photo-preflight",
		Method:      http.MethodOptions,
		Path:        Path,
	}, Preflight)
}

func lookupHandler(resolver *photo.Resolver) func(context.Context, *LookupInput) (*LookupOutput, error) {
	return func(ctx context.Context, input *LookupInput) (*LookupOutput, error) {
		phone, err := phoneFromBody(input.RawBody)
		if err != nil {
			if photo.IsValidationError(err) {
				return nil, mapValidationError(err)
			}
			applog.LogWarn(ctx, "lookup request body is unusable, using fallback", zap.Error(err))
			return &LookupOutput{Body: toHTTPResult(resolver.Fallback())}, nil
		}

		res, err := resolver.Resolve(ctx, phone)
		if err != nil {
			if photo.IsValidationError(err) {
				return nil, mapValidationError(err)
			}
			applog.LogError(ctx, "unexpected resolver error, using fallback", err)
			res = resolver.Fallback()
		}

		applog.LogInfo(ctx, "photo lookup resolved", zap.Bool("private", res.Private))
		return &LookupOutput{Body: toHTTPResult(res)}, nil
	}
}

// phoneFromBody reads the phone the way loosely typed web clients send it.
// A body that is not an object has no phone. A falsy phone (absent, null, "",
// 0, false) is missing. A null or unparseable body, or a truthy phone that is
// not a string, is unusable.
func phoneFromBody(raw []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("%w: %w", errUnusableBody, err)
	}
	if doc == nil {
		return "", fmt.Errorf("%w: body is null", errUnusableBody)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return "", photo.ErrPhoneRequired
	}

	switch v := obj["phone"].(type) {
	case nil:
		return "", photo.ErrPhoneRequired
	case string:
		return v, nil
	case bool:
		if !v {
			return "", photo.ErrPhoneRequired
		}
	case float64:
		if v == 0 {
			return "", photo.ErrPhoneRequired
		}
	}
	return "", fmt.Errorf("%w: phone is a %T", errUnusableBody, obj["phone"])
}

// Preflight answers OPTIONS /lookup with permissive CORS headers and no body.
func Preflight(ctx huma.Context) {
	ctx.SetHeader("Access-Control-Allow-Origin", "*")
	ctx.SetHeader("Access-Control-Allow-Methods", preflightMethods)
	ctx.SetHeader("Access-Control-Allow-Headers", preflightHeaders)
	ctx.SetStatus(http.StatusOK)
}

func mapValidationError(err error) error {
	switch {
	case errors.Is(err, photo.ErrPhoneRequired):
		return apiinternal.NewError(http.StatusBadRequest, photo.ErrPhoneRequired.Error())
	default:
		return apiinternal.NewError(http.StatusBadRequest, photo.ErrInvalidPhone.Error())
	}
}

func toHTTPResult(r photo.Result) LookupResult {
	return LookupResult{
		Success:        true,
		Result:         r.ImageURL,
		IsPhotoPrivate: r.Private,
	}
}
