package model

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ClientProfile is the identity a discovery run searches for.
// Fields are unexported so that a profile cannot change once a run has
// started; use the accessor methods to read them.
type ClientProfile struct {
	name    string
	city    string
	state   string
	phone   string
	address string
}

// ProfileOption configures optional ClientProfile fields.
type ProfileOption func(*ClientProfile)

// WithCity sets the city hint.
func WithCity(city string) ProfileOption {
	return func(p *ClientProfile) {
		p.city = strings.TrimSpace(city)
	}
}

// WithState sets the state hint (usually a two-letter code).
func WithState(state string) ProfileOption {
	return func(p *ClientProfile) {
		p.state = strings.TrimSpace(state)
	}
}

// WithPhone sets the phone number.
func WithPhone(phone string) ProfileOption {
	return func(p *ClientProfile) {
		p.phone = strings.TrimSpace(phone)
	}
}

// WithAddress sets the street address.
func WithAddress(address string) ProfileOption {
	return func(p *ClientProfile) {
		p.address = strings.TrimSpace(address)
	}
}

// NewClientProfile creates a profile for the given full name.
// Internal whitespace of the name is collapsed. It returns ErrEmptyName
// when the name is blank.
func NewClientProfile(name string, opts ...ProfileOption) (*ClientProfile, error) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return nil, ErrEmptyName
	}

	p := &ClientProfile{name: strings.Join(fields, " ")}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the full name.
func (p *ClientProfile) Name() string { return p.name }

// City returns the city hint or an empty string.
func (p *ClientProfile) City() string { return p.city }

// State returns the state hint or an empty string.
func (p *ClientProfile) State() string { return p.state }

// Phone returns the phone number or an empty string.
func (p *ClientProfile) Phone() string { return p.phone }

// Address returns the street address or an empty string.
func (p *ClientProfile) Address() string { return p.address }

// NameTokens returns the whitespace-separated parts of the name.
func (p *ClientProfile) NameTokens() []string {
	return strings.Fields(p.name)
}

// FirstName returns the first name token.
func (p *ClientProfile) FirstName() string {
	tokens := p.NameTokens()
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// LastName returns the last name token. Single-token names have no last name.
func (p *ClientProfile) LastName() string {
	tokens := p.NameTokens()
	if len(tokens) < 2 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// MatchTokens returns the folded first and last tokens used by the match
// heuristics. last is empty for single-token names.
func (p *ClientProfile) MatchTokens() (first, last string) {
	return FoldText(p.FirstName()), FoldText(p.LastName())
}

// HasLocation reports whether a city or state hint is present.
func (p *ClientProfile) HasLocation() bool {
	return p.city != "" || p.state != ""
}

// QueryKeys returns the flat query mapping of the profile.
// "last" falls back to the first token for single-token names so callers
// that need a surname parameter always have something to send.
func (p *ClientProfile) QueryKeys() map[string]string {
	tokens := p.NameTokens()
	last := ""
	if len(tokens) > 0 {
		last = tokens[len(tokens)-1]
	}
	return map[string]string{
		"name":    p.name,
		"first":   p.FirstName(),
		"last":    last,
		"city":    p.city,
		"state":   p.state,
		"phone":   p.phone,
		"address": p.address,
	}
}

// SubjectKey returns a stable identifier for the searched person derived
// from the folded name, city and state. The run history is indexed by this
// key instead of the raw name.
func (p *ClientProfile) SubjectKey() string {
	parts := []string{
		strings.Join(strings.Fields(FoldText(p.name)), " "),
		FoldText(p.city),
		FoldText(p.state),
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// String returns the name with location hints, e.g. "Jane Doe, Austin, TX".
func (p *ClientProfile) String() string {
	var sb strings.Builder
	sb.WriteString(p.name)
	if p.city != "" {
		sb.WriteString(", ")
		sb.WriteString(p.city)
	}
	if p.state != "" {
		sb.WriteString(", ")
		sb.WriteString(p.state)
	}
	return sb.String()
}

// profileJSON is the serialized form of ClientProfile.
type profileJSON struct {
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p *ClientProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(profileJSON{
		Name:    p.name,
		City:    p.city,
		State:   p.state,
		Phone:   p.phone,
		Address: p.address,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ClientProfile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewClientProfile(raw.Name,
		WithCity(raw.City),
		WithState(raw.State),
		WithPhone(raw.Phone),
		WithAddress(raw.Address),
	)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// FoldText lower-cases s and strips diacritics so that "José" and "jose"
// compare equal.
func FoldText(s string) string {
	// transform.Chain is stateful, so build a fresh chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}
