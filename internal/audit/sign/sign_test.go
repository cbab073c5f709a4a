package sign

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func payload() Payload {
	return Payload{
		Action:        "UPDATE",
		Status:        "SUCCESS",
		TargetType:    "Applicant",
		TargetID:      "2024000001",
		CorrelationID: "corr-1",
		PrevValues:    map[string]any{"phone": "0900000000", "email": "a@b.example"},
		NewValues:     map[string]any{"phone": "0911111111"},
	}
}

func TestSignIsDeterministic(t *testing.T) {
	s := New("secret")
	assert.Equal(t, s.Sign(payload()), s.Sign(payload()))
	assert.Len(t, s.Sign(payload()), 64)
}

func TestVerifyRoundTrip(t *testing.T) {
	s := New("secret")
	sig := s.Sign(payload())
	assert.True(t, s.Verify(payload(), sig))
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := New("secret")
	sig := s.Sign(payload())

	p := payload()
	p.NewValues["phone"] = "0922222222"
	assert.False(t, s.Verify(p, sig))

	p = payload()
	p.TargetID = "2024000002"
	assert.False(t, s.Verify(p, sig))
}

func TestDifferentSecretsDisagree(t *testing.T) {
	a := New("secret-a")
	b := New("secret-b")
	sig := a.Sign(payload())
	assert.False(t, b.Verify(payload(), sig))
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	s := New("secret")
	assert.False(t, s.Verify(payload(), "not-hex"))
	assert.False(t, s.Verify(payload(), ""))
}
