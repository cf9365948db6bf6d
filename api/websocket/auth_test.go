package websocket

import "testing"

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("launchpad-secret")
	userID := "0xAbCd000000000000000000000000000000000001"

	token := v.TokenFor(userID)
	if token == "" {
		t.Fatal("TokenFor() returned empty token")
	}
	if !v.Verify(userID, token) {
		t.Error("Verify() = false for a freshly minted token")
	}

	// Tokens bind the lowercase identity, so checksum casing is irrelevant.
	if !v.Verify("0xabcd000000000000000000000000000000000001", token) {
		t.Error("Verify() = false for lowercase spelling of the same user")
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("launchpad-secret")
	userID := "0xabcd000000000000000000000000000000000001"
	token := v.TokenFor(userID)

	cases := []struct {
		name   string
		userID string
		token  string
	}{
		{"token for another user", "0xabcd000000000000000000000000000000000002", token},
		{"tampered token", userID, token + "00"},
		{"non-hex token", userID, "not-a-token"},
		{"empty token", userID, ""},
		{"empty user", "", token},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Verify(tc.userID, tc.token) {
				t.Error("Verify() = true, want false")
			}
		})
	}

	other := NewVerifier("different-secret")
	if other.Verify(userID, token) {
		t.Error("Verify() = true across secrets, want false")
	}
}

func TestVerifier_DisabledSecret(t *testing.T) {
	v := NewVerifier("")
	if v.Verify("user", v.TokenFor("user")) {
		t.Error("empty-secret verifier accepted a token")
	}

	var nilVerifier *Verifier
	if nilVerifier.Verify("user", "deadbeef") {
		t.Error("nil verifier accepted a token")
	}
}
