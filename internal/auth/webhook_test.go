package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWebhookVerifier_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewWebhookVerifier("")
	require.Error(t, err)
}

func TestWebhookVerifier(t *testing.T) {
	t.Parallel()

	v, err := NewWebhookVerifier("hook-secret")
	require.NoError(t, err)
	other, err := NewWebhookVerifier("other-secret")
	require.NoError(t, err)

	body := []byte(`{"account_id":"alice","amount":"25.00","external_reference":"pi_1"}`)
	sig, err := v.Sign(body)
	require.NoError(t, err)
	foreign, err := other.Sign(body)
	require.NoError(t, err)

	tests := []struct {
		name      string
		body      []byte
		signature string
		want      bool
	}{
		{name: "valid", body: body, signature: sig, want: true},
		{name: "missing", body: body, signature: "", want: false},
		{name: "other_secret", body: body, signature: foreign, want: false},
		{name: "tampered_body", body: []byte(`{"account_id":"alice","amount":"2500.00","external_reference":"pi_1"}`), signature: sig, want: false},
		{name: "not_base64", body: body, signature: "%%%", want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, v.Verify(tc.body, tc.signature))
		})
	}
}
