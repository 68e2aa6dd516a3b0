package lookup

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apiinternal "github.com/janisto/wa-photo-proxy/internal/api"
	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
	appmiddleware "github.com/janisto/wa-photo-proxy/internal/platform/middleware"
	"github.com/janisto/wa-photo-proxy/internal/platform/respond"
	"github.com/janisto/wa-photo-proxy/internal/service/contacts"
	"github.com/janisto/wa-photo-proxy/internal/service/photo"
)

const fallbackJSON = `{"success":true,"result":"` + photo.DefaultFallbackImageURL + `","is_photo_private":true}`

func newTestRouter(resolver *photo.Resolver) chi.Router {
	router := chi.NewRouter()
	router.Use(
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		chimiddleware.RealIP,
		applog.RequestLogger(),
		respond.Recoverer(),
	)
	cfg := huma.DefaultConfig("LookupTest", "test")
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)
	Register(api, resolver)
	return router
}

// newUpstreamRouter wires the handler to a real contacts client talking to an
// httptest upstream served by handler.
func newUpstreamRouter(t *testing.T, handler http.HandlerFunc, opts ...contacts.Option) chi.Router {
	t.Helper()
	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)
	client := contacts.NewClient(upstream.Client(), append([]contacts.Option{contacts.WithBaseURL(upstream.URL)}, opts...)...)
	return newTestRouter(photo.NewResolver(client))
}

func postLookup(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(chimiddleware.RequestIDHeader, "lookup-test")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeResult(t *testing.T, resp *httptest.ResponseRecorder) LookupResult {
	t.Helper()
	var result LookupResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("json unmarshal %q: %v", resp.Body.String(), err)
	}
	return result
}

func assertJSONEqual(t *testing.T, want, got string) {
	t.Helper()
	var w, g any
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("bad expectation: %v", err)
	}
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("bad body %q: %v", got, err)
	}
	wb, _ := json.Marshal(w)
	gb, _ := json.Marshal(g)
	if string(wb) != string(gb) {
		t.Fatalf("expected body %s, got %s", wb, gb)
	}
}

func TestLookupValidationErrors(t *testing.T) {
	calls := 0
	router := newUpstreamRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{}`))
	})

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "missing phone", body: `{}`, msg: "Phone number is required"},
		{name: "empty phone", body: `{"phone":""}`, msg: "Phone number is required"},
		{name: "null phone", body: `{"phone":null}`, msg: "Phone number is required"},
		{name: "zero phone", body: `{"phone":0}`, msg: "Phone number is required"},
		{name: "false phone", body: `{"phone":false}`, msg: "Phone number is required"},
		{name: "array body", body: `[]`, msg: "Phone number is required"},
		{name: "array of phones", body: `["5511999998888"]`, msg: "Phone number is required"},
		{name: "number body", body: `123`, msg: "Phone number is required"},
		{name: "string body", body: `"x"`, msg: "Phone number is required"},
		{name: "short phone", body: `{"phone":"12345"}`, msg: "Invalid phone number format"},
		{name: "punctuation only", body: `{"phone":"(--) --"}`, msg: "Invalid phone number format"},
		{name: "nine digits", body: `{"phone":"+1 234-567-89"}`, msg: "Invalid phone number format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postLookup(router, tt.body)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("expected Access-Control-Allow-Origin '*', got %q", got)
			}
			var body apiinternal.ErrorResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("json unmarshal: %v", err)
			}
			if body.Success {
				t.Fatal("expected success=false")
			}
			if body.Message != tt.msg {
				t.Fatalf("expected %q, got %q", tt.msg, body.Message)
			}
		})
	}
	if calls != 0 {
		t.Fatalf("expected no upstream calls for invalid input, got %d", calls)
	}
}

func TestLookupRealPhoto(t *testing.T) {
	router := newUpstreamRouter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts/5511999998888" {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profile":{"image":"https://cdn.example/real.jpg"}}`))
	})

	resp := postLookup(router, `{"phone":"+55 (11) 99999-8888"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected Access-Control-Allow-Origin '*', got %q", got)
	}
	assertJSONEqual(t, `{"success":true,"result":"https://cdn.example/real.jpg","is_photo_private":false}`, resp.Body.String())
}

func TestLookupFallbackBranches(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream 500",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "upstream 404 json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"not found"}`))
			},
		},
		{
			name: "plain text body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("Not Found"))
			},
		},
		{
			name: "truncated json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"profile":`))
			},
		},
		{
			name: "placeholder image",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"profile":{"image":"https://cdn.example/no-user-image-icon-27.png"}}`))
			},
		},
		{
			name: "no profile",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			},
		},
		{
			name: "array document",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[]`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newUpstreamRouter(t, tt.handler)

			resp := postLookup(router, `{"phone":"1234567890"}`)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			assertJSONEqual(t, fallbackJSON, resp.Body.String())
		})
	}
}

func TestLookupUpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	router := newUpstreamRouter(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, contacts.WithTimeout(50*time.Millisecond))
	t.Cleanup(func() { close(release) })

	resp := postLookup(router, `{"phone":"1234567890"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	assertJSONEqual(t, fallbackJSON, resp.Body.String())
}

func TestLookupUpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	router := newTestRouter(photo.NewResolver(contacts.NewClient(nil, contacts.WithBaseURL(base))))
	resp := postLookup(router, `{"phone":"1234567890"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	assertJSONEqual(t, fallbackJSON, resp.Body.String())
}

func TestLookupMalformedBodyUsesFallback(t *testing.T) {
	router := newTestRouter(photo.NewResolver(contacts.NewMockContactsService()))

	for _, body := range []string{
		"",
		"not json",
		"null",
		`{"phone":5511999998888}`,
		`{"phone":true}`,
		`{"phone":["5511999998888"]}`,
		`{"phone":{"number":"5511999998888"}}`,
	} {
		resp := postLookup(router, body)
		if resp.Code != http.StatusOK {
			t.Fatalf("body %q: expected 200, got %d", body, resp.Code)
		}
		assertJSONEqual(t, fallbackJSON, resp.Body.String())
	}
}

func TestLookupEmptyBodyWithoutContentType(t *testing.T) {
	router := newTestRouter(photo.NewResolver(contacts.NewMockContactsService()))

	req := httptest.NewRequest(http.MethodPost, Path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	assertJSONEqual(t, fallbackJSON, resp.Body.String())
}

func TestPhoneFromBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		phone   string
		wantErr error
	}{
		{name: "string phone", body: `{"phone":"+55 11 99999-8888"}`, phone: "+55 11 99999-8888"},
		{name: "empty string passes through", body: `{"phone":""}`, phone: ""},
		{name: "extra fields", body: `{"phone":"1234567890","name":"x"}`, phone: "1234567890"},
		{name: "missing", body: `{}`, wantErr: photo.ErrPhoneRequired},
		{name: "null phone", body: `{"phone":null}`, wantErr: photo.ErrPhoneRequired},
		{name: "zero", body: `{"phone":0}`, wantErr: photo.ErrPhoneRequired},
		{name: "negative zero", body: `{"phone":-0}`, wantErr: photo.ErrPhoneRequired},
		{name: "false", body: `{"phone":false}`, wantErr: photo.ErrPhoneRequired},
		{name: "array", body: `[1]`, wantErr: photo.ErrPhoneRequired},
		{name: "number", body: `42`, wantErr: photo.ErrPhoneRequired},
		{name: "empty", body: ``, wantErr: errUnusableBody},
		{name: "invalid json", body: `{"phone":`, wantErr: errUnusableBody},
		{name: "null body", body: `null`, wantErr: errUnusableBody},
		{name: "true", body: `{"phone":true}`, wantErr: errUnusableBody},
		{name: "number phone", body: `{"phone":1234567890}`, wantErr: errUnusableBody},
		{name: "object phone", body: `{"phone":{}}`, wantErr: errUnusableBody},
		{name: "empty array phone", body: `{"phone":[]}`, wantErr: errUnusableBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phone, err := phoneFromBody([]byte(tt.body))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if phone != tt.phone {
				t.Fatalf("expected %q, got %q", tt.phone, phone)
			}
		})
	}
}

func TestRegisterDocumentsJSONBody(t *testing.T) {
	router := chi.NewRouter()
	cfg := huma.DefaultConfig("LookupTest", "test")
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)
	Register(api, photo.NewResolver(contacts.NewMockContactsService()))

	op := api.OpenAPI().Paths[Path].Post
	if op == nil || op.RequestBody == nil {
		t.Fatal("expected a documented request body")
	}
	if op.RequestBody.Required {
		t.Fatal("expected the request body to be optional")
	}
	if _, ok := op.RequestBody.Content["application/octet-stream"]; ok {
		t.Fatal("expected no binary request body media type")
	}
	mt, ok := op.RequestBody.Content["application/json"]
	if !ok || mt.Schema == nil {
		t.Fatal("expected a JSON request body schema")
	}
	if mt.Schema.Ref != "#/components/schemas/LookupRequest" {
		t.Fatalf("expected LookupRequest schema, got %+v", mt.Schema)
	}
}

func TestLookupIsIdempotent(t *testing.T) {
	router := newTestRouter(photo.NewResolver(contacts.NewMockContactsService()))

	first := postLookup(router, `{"phone":"5511999998888"}`).Body.String()
	for range 3 {
		if got := postLookup(router, `{"phone":"5511999998888"}`).Body.String(); got != first {
			t.Fatalf("expected identical responses, got %s then %s", first, got)
		}
	}
	if result := decodeResult(t, postLookup(router, `{"phone":"5511999998888"}`)); result.IsPhotoPrivate {
		t.Fatalf("expected demo contact photo, got %+v", result)
	}
}

func TestLookupCustomFallbackURL(t *testing.T) {
	svc := contacts.NewMockContactsService()
	router := newTestRouter(photo.NewResolver(svc, photo.WithFallbackImageURL("https://static.example/anon.png")))

	result := decodeResult(t, postLookup(router, `{"phone":"5511988887777"}`))
	if !result.Success || !result.IsPhotoPrivate || result.Result != "https://static.example/anon.png" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestLookupCBOR(t *testing.T) {
	router := newTestRouter(photo.NewResolver(contacts.NewMockContactsService()))

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(`{"phone":"5511999998888"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/cbor")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Fatalf("expected application/cbor, got %s", ct)
	}
	var result LookupResult
	if err := cbor.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("cbor unmarshal: %v", err)
	}
	if !result.Success || result.IsPhotoPrivate || result.Result == "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPreflight(t *testing.T) {
	router := newTestRouter(photo.NewResolver(contacts.NewMockContactsService()))

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "bare options"},
		{
			name: "browser preflight",
			headers: map[string]string{
				"Origin":                         "https://client.example",
				"Access-Control-Request-Method":  http.MethodPost,
				"Access-Control-Request-Headers": "Content-Type",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, Path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			if resp.Body.Len() != 0 {
				t.Fatalf("expected empty body, got %q", resp.Body.String())
			}
			want := map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": "POST, OPTIONS",
				"Access-Control-Allow-Headers": "Content-Type",
			}
			for k, v := range want {
				if got := resp.Header().Values(k); len(got) != 1 || got[0] != v {
					t.Errorf("%s: expected [%q], got %q", k, v, got)
				}
			}
		})
	}
}
