package contacts

import (
	"context"
	"sync"
)

// MockContactsService implements Service from an in-memory table. Unknown
// phones behave like an upstream 404.
type MockContactsService struct {
	mu       sync.RWMutex
	contacts map[string]Contact
	errs     map[string]error
}

// NewMockContactsService creates a mock pre-populated with demo contacts: one
// with a real photo and one showing the upstream "no user image" placeholder.
func NewMockContactsService() *MockContactsService {
	m := &MockContactsService{
		contacts: map[string]Contact{},
		errs:     map[string]error{},
	}
	m.Set("5511999998888", "https://pps.whatsapp.net/v/t61.24694-24/demo-profile.jpg")
	m.Set("5511988887777", "https://i0.wp.com/example.com/no-user-image-icon-27.png")
	return m
}

// Set registers a contact with the given profile image (empty for none).
func (m *MockContactsService) Set(phone, image string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[phone] = Contact{Phone: phone, ProfileImage: image}
	delete(m.errs, phone)
}

// Fail makes lookups of phone return err.
func (m *MockContactsService) Fail(phone string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[phone] = err
}

func (m *MockContactsService) GetContact(ctx context.Context, phone string) (*Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UpstreamError{Kind: UpstreamErrorKindTransport, cause: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.errs[phone]; ok {
		return nil, err
	}
	c, ok := m.contacts[phone]
	if !ok {
		return nil, &UpstreamError{Kind: UpstreamErrorKindStatus, Status: 404}
	}
	return &c, nil
}

// Compile-time interface check
var _ Service = (*MockContactsService)(nil)
