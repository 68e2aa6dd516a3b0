// Package photo decides which profile photo a caller should render for a
// phone number. Callers have no error path of their own, so every upstream
// failure is absorbed into a placeholder result; only malformed input is
// reported as an error.
package photo

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
	"github.com/janisto/wa-photo-proxy/internal/service/contacts"
)

const (
	// DefaultFallbackImageURL is the placeholder rendered when no real photo is available.
	DefaultFallbackImageURL = "https://i0.wp.com/digitalhealthskills.com/wp-content/uploads/2022/11/3da39-no-user-image-icon-27.png?fit=500%2C500&ssl=1"

	// NoUserImageMarker appears in upstream image URLs that are themselves a placeholder.
	NoUserImageMarker = "no-user-image-icon"

	// MinPhoneDigits is the shortest accepted normalized phone number.
	MinPhoneDigits = 10
)

// Validation errors
var (
	ErrPhoneRequired = errors.New("Phone number is required")  //nolint:staticcheck // rendered verbatim to clients
	ErrInvalidPhone  = errors.New("Invalid phone number format") //nolint:staticcheck // rendered verbatim to clients
)

// Result is the photo a caller should render.
type Result struct {
	ImageURL string
	// Private is true whenever ImageURL is the fallback placeholder.
	Private bool
}

// NormalizePhone removes every non-digit character.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := range len(raw) {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ValidatePhone returns the normalized phone or one of the validation errors.
func ValidatePhone(raw string) (string, error) {
	if raw == "" {
		return "", ErrPhoneRequired
	}
	phone := NormalizePhone(raw)
	if len(phone) < MinPhoneDigits {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

// IsValidationError reports whether err is one of the input validation errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPhoneRequired) || errors.Is(err, ErrInvalidPhone)
}

// Resolver applies the lookup policy on top of a contacts.Service.
type Resolver struct {
	contacts    contacts.Service
	fallbackURL string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallbackImageURL replaces DefaultFallbackImageURL. Empty values are ignored.
func WithFallbackImageURL(u string) Option {
	return func(r *Resolver) {
		if u != "" {
			r.fallbackURL = u
		}
	}
}

// NewResolver creates a Resolver backed by svc.
func NewResolver(svc contacts.Service, opts ...Option) *Resolver {
	r := &Resolver{contacts: svc, fallbackURL: DefaultFallbackImageURL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fallback is the result substituted whenever the real photo cannot be determined.
func (r *Resolver) Fallback() Result {
	return Result{ImageURL: r.fallbackURL, Private: true}
}

// Resolve validates raw and looks up its photo. The returned error is non-nil
// only for ErrPhoneRequired and ErrInvalidPhone; upstream failures, timeouts
// and panics all yield Fallback.
func (r *Resolver) Resolve(ctx context.Context, raw string) (res Result, err error) {
	phone, err := ValidatePhone(raw)
	if err != nil {
		return Result{}, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			applog.LogError(ctx, "photo lookup panicked", fmt.Errorf("%v\n%s", rec, debug.Stack()))
			res, err = r.Fallback(), nil
		}
	}()

	start := time.Now()
	contact, lookupErr := r.contacts.GetContact(ctx, phone)
	if lookupErr != nil {
		fields := []zap.Field{zap.Duration("duration", time.Since(start))}
		var ue *contacts.UpstreamError
		if errors.As(lookupErr, &ue) {
			fields = append(fields, zap.String("kind", string(ue.Kind)), zap.Int("upstreamStatus", ue.Status))
		}
		applog.LogWarn(ctx, "photo lookup failed, using fallback", append(fields, zap.Error(lookupErr))...)
		return r.Fallback(), nil
	}

	if contact == nil {
		return r.Fallback(), nil
	}
	return r.fromImage(contact.ProfileImage), nil
}

func (r *Resolver) fromImage(image string) Result {
	if image == "" || strings.Contains(image, NoUserImageMarker) {
		return r.Fallback()
	}
	return Result{ImageURL: image}
}
