package privacy

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewService_Enabled(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, err := NewService("secret", "salt", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !svc.IsEnabled() {
		t.Fatal("expected encryption to be enabled with a secret")
	}

	ct, err := svc.EncryptField("A1234")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ct == "A1234" {
		t.Fatal("ciphertext should differ from plaintext")
	}

	got, legacy, err := svc.DecryptField(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if legacy {
		t.Error("fresh ciphertext flagged as legacy")
	}
	if got != "A1234" {
		t.Errorf("round trip: got %q", got)
	}
}

func TestNewService_DisabledWithoutSecret(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, err := NewService("", "salt", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.IsEnabled() {
		t.Fatal("expected encryption to be disabled with empty secret")
	}

	ct, err := svc.EncryptField("plain")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ct != "plain" {
		t.Errorf("disabled encrypt should pass through, got %q", ct)
	}

	got, legacy, err := svc.DecryptField("plain")
	if err != nil || legacy || got != "plain" {
		t.Errorf("disabled decrypt should pass through, got (%q, %v, %v)", got, legacy, err)
	}
}

func TestService_EmptyValuePassthrough(t *testing.T) {
	svc, err := NewService("secret", "salt", zerolog.New(os.Stderr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ct, err := svc.EncryptField("")
	if err != nil || ct != "" {
		t.Errorf("empty value should not be encrypted, got (%q, %v)", ct, err)
	}
}
