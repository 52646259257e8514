package chatstore

import (
	"strings"
	"testing"
)

func TestWithIntegrityPreservesFieldOrderAndStampsSlug(t *testing.T) {
	header := `{"user_name":"User","character_name":"Alice","create_date":"2026-01-01"}`

	stamped, err := WithIntegrity(header, "v1")
	if err != nil {
		t.Fatalf("WithIntegrity: %v", err)
	}

	if !strings.Contains(stamped, `"chat_metadata":{"integrity":"v1"}`) {
		t.Fatalf("expected chat_metadata.integrity to be stamped, got %s", stamped)
	}
	userNameIdx := strings.Index(stamped, "user_name")
	characterNameIdx := strings.Index(stamped, "character_name")
	if userNameIdx < 0 || characterNameIdx < 0 || userNameIdx > characterNameIdx {
		t.Fatalf("expected user_name to still precede character_name, got %s", stamped)
	}
}

func TestWithIntegrityPreservesExistingMetadataKeys(t *testing.T) {
	header := `{"user_name":"User","chat_metadata":{"chat_id_hash":123,"note":"keep me"}}`

	stamped, err := WithIntegrity(header, "v2")
	if err != nil {
		t.Fatalf("WithIntegrity: %v", err)
	}
	if !strings.Contains(stamped, `"note":"keep me"`) {
		t.Fatalf("expected unrelated metadata keys to survive, got %s", stamped)
	}
	if !strings.Contains(stamped, `"integrity":"v2"`) {
		t.Fatalf("expected integrity to be set, got %s", stamped)
	}
}
