package payments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignIsStableHMAC(t *testing.T) {
	a := NewHMACAuthenticator([]byte("my_secret_key"))
	body := []byte(`{"order_id": "123", "payment_status": "paid"}`)

	sig := a.Sign(body)
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, a.Sign(body))
	assert.NotEqual(t, sig, a.Sign([]byte(`{"order_id": "123", "payment_status": "failed"}`)))
	assert.NotEqual(t, sig, NewHMACAuthenticator([]byte("other")).Sign(body))
}

func TestSignKnownVector(t *testing.T) {
	// RFC 4231 test case 2
	a := NewHMACAuthenticator([]byte("Jefe"))
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		a.Sign([]byte("what do ya want for nothing?")),
	)
}

func TestVerify(t *testing.T) {
	a := NewHMACAuthenticator([]byte("dev_webhook_secret_key"))
	body := []byte(`{"test": "data"}`)
	valid := a.Sign(body)

	tests := []struct {
		name string
		body []byte
		sig  string
		want bool
	}{
		{"valid", body, valid, true},
		{"wrong signature", body, strings.Repeat("0", 64), false},
		{"missing signature", body, "", false},
		{"uppercase hex", body, strings.ToUpper(valid), false},
		{"not hex", body, strings.Repeat("zz", 32), false},
		{"truncated", body, valid[:40], false},
		{"empty body", nil, NewHMACAuthenticator([]byte("dev_webhook_secret_key")).Sign(nil), false},
		{"body re-serialised", []byte(`{"test":"data"}`), valid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Verify(tt.body, tt.sig))
		})
	}
}

func TestVerifyWithoutSecretRejects(t *testing.T) {
	a := NewHMACAuthenticator(nil)
	body := []byte(`{}`)
	assert.False(t, a.Verify(body, a.Sign(body)))
}
