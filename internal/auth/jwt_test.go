package auth

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/model"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newTestCodec(clock *fakeClock, opts ...Option) *Codec {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewCodec("secret", zerolog.Nop(), opts...)
}

func samplePayload() Payload {
	return Payload{
		UserID: 1,
		Name:   "Admin",
		Email:  "admin@admin.com",
		Role:   model.RoleAdmin,
		Studies: []model.Study{
			{ID: 1, UserID: 1, Institution: "UBA", Title: "CS"},
			{ID: 2, UserID: 1, Institution: "UTN", Title: "Systems", CurrentlyStudying: true},
		},
		Addresses: []model.Address{
			{ID: 3, UserID: 1, Street: "Av. Siempre Viva 742", City: "Springfield"},
		},
	}
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(clock)

	payload := samplePayload()
	token, err := codec.Issue(payload, "1h")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	claims, ok := codec.Decode(token)
	if !ok {
		t.Fatalf("expected token to decode")
	}
	if !reflect.DeepEqual(claims.Payload, payload) {
		t.Fatalf("payload mismatch:\n got %+v\nwant %+v", claims.Payload, payload)
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.Equal(clock.now) {
		t.Fatalf("unexpected iat: %v", claims.IssuedAt)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected exp: %v", claims.ExpiresAt)
	}
}

func TestIssueRequiresIDAndEmail(t *testing.T) {
	codec := newTestCodec(&fakeClock{now: time.Now()})

	if _, err := codec.Issue(Payload{Email: "a@b.c"}, "1h"); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload without id, got %v", err)
	}
	if _, err := codec.Issue(Payload{UserID: 4}, "1h"); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload without email, got %v", err)
	}
}

func TestVerifyLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(clock)

	token, err := codec.Issue(samplePayload(), 90)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if !codec.Verify(token) {
		t.Fatalf("expected fresh token to verify")
	}

	clock.now = clock.now.Add(89 * time.Second)
	if !codec.Verify(token) {
		t.Fatalf("expected token to verify before expiry")
	}

	clock.now = clock.now.Add(2 * time.Second)
	if codec.Verify(token) {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(clock)

	token, err := codec.Issue(samplePayload(), "5m")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	other := NewCodec("another-secret", zerolog.Nop(), WithClock(clock.Now))
	if other.Verify(token) {
		t.Fatalf("expected token signed with another secret to fail")
	}

	parts := strings.Split(token, ".")
	forged := parts[0] + "." + parts[1] + "x." + parts[2]
	if codec.Verify(forged) {
		t.Fatalf("expected tampered token to fail")
	}
	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if codec.Verify(bad) {
			t.Fatalf("expected %q to fail verification", bad)
		}
	}
}

func TestRemainingSeconds(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(clock)

	token, err := codec.Issue(samplePayload(), "10m")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	first, ok := codec.RemainingSeconds(token)
	if !ok || first != 600 {
		t.Fatalf("expected 600 seconds remaining, got %d (%v)", first, ok)
	}

	clock.now = clock.now.Add(30 * time.Second)
	second, ok := codec.RemainingSeconds(token)
	if !ok || second >= first {
		t.Fatalf("expected remaining time to decrease, got %d then %d", first, second)
	}

	if _, ok := codec.RemainingSeconds("not-a-token"); ok {
		t.Fatalf("expected malformed token to report no remaining time")
	}
}

func TestIssueCapsEmbeddedRecords(t *testing.T) {
	codec := newTestCodec(&fakeClock{now: time.Now()}, WithMaxEmbedded(1))

	token, err := codec.Issue(samplePayload(), "1h")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	claims, ok := codec.Decode(token)
	if !ok {
		t.Fatalf("expected token to decode")
	}
	if len(claims.Studies) != 1 || claims.Studies[0].ID != 1 {
		t.Fatalf("expected first study only, got %+v", claims.Studies)
	}
	if len(claims.Addresses) != 1 {
		t.Fatalf("expected one address, got %d", len(claims.Addresses))
	}
}

func TestParseAndDecodeExposeUserID(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(clock)

	token, err := codec.Issue(Payload{UserID: 42, Email: "u@example.com", Role: model.RoleUser}, "1h")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	parsed, err := codec.Parse(token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if parsed.UserID != 42 || parsed.Email != "u@example.com" {
		t.Fatalf("unexpected parsed claims: %+v", parsed.Payload)
	}
	if parsed.RegisteredClaims.ID != "" {
		t.Fatalf("expected no jti, got %q", parsed.RegisteredClaims.ID)
	}

	decoded, ok := codec.Decode(token)
	if !ok || decoded.UserID != 42 {
		t.Fatalf("expected decoded user id 42, got %+v (%v)", decoded, ok)
	}

	parts := strings.Split(token, ".")
	raw, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		t.Fatalf("decode segment: %v", err)
	}
	if !strings.Contains(string(raw), `"id":42`) {
		t.Fatalf("expected id claim on the wire, got %s", raw)
	}
}

func TestTokenWithoutExpiry(t *testing.T) {
	codec := newTestCodec(&fakeClock{now: time.Now()})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": 1, "email": "a"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	if _, ok := codec.Decode(token); !ok {
		t.Fatalf("expected token without exp to decode")
	}
	if remaining, ok := codec.RemainingSeconds(token); ok || remaining != 0 {
		t.Fatalf("expected (0, false) without exp, got (%d, %v)", remaining, ok)
	}
	if codec.Verify(token) {
		t.Fatalf("expected token without exp to fail verification")
	}
}
