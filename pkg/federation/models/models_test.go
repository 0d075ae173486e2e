package models

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestGenerateAPIKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		key, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey: %v", err)
		}
		if len(key) != APIKeyLength {
			t.Fatalf("key length = %d, want %d", len(key), APIKeyLength)
		}
		for _, r := range key {
			if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
				t.Fatalf("key %q contains non-alphanumeric %q", key, r)
			}
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = true
	}
}

func TestCanonicalEntity(t *testing.T) {
	tests := []struct {
		id, host string
		want     string
	}{
		{id: "abuser", host: "example.com", want: "abuser@example.com"},
		{id: "abuser", host: "", want: "abuser"},
	}
	for _, tt := range tests {
		if got := CanonicalEntity(tt.id, tt.host); got != tt.want {
			t.Errorf("CanonicalEntity(%q, %q) = %q, want %q", tt.id, tt.host, got, tt.want)
		}
	}
}

func TestHashEntity(t *testing.T) {
	sum := sha256.Sum256([]byte("abuser@example.com"))
	want := hex.EncodeToString(sum[:])
	if got := HashEntity("abuser", "example.com"); got != want {
		t.Errorf("HashEntity = %s, want %s", got, want)
	}
	if HashEntity("abuser", "") == HashEntity("abuser", "example.com") {
		t.Error("hash should depend on the host")
	}
}

func TestIsUUIDAndIsEntityHash(t *testing.T) {
	uuid := "123e4567-e89b-12d3-a456-426614174000"
	hash := HashEntity("abuser", "example.com")

	if !IsUUID(uuid) {
		t.Error("valid UUID rejected")
	}
	if IsUUID(hash) {
		t.Error("hash accepted as UUID")
	}
	if !IsEntityHash(hash) {
		t.Error("valid hash rejected")
	}
	if IsEntityHash(uuid) {
		t.Error("UUID accepted as hash")
	}
	if IsUUID("not-a-uuid") || IsEntityHash("beef") {
		t.Error("malformed identifiers accepted")
	}
}

func TestBlacklistTypeIsValid(t *testing.T) {
	for _, typ := range []BlacklistType{
		BlacklistSpam, BlacklistScam, BlacklistServiceAbuse,
		BlacklistIllegalContent, BlacklistMalware, BlacklistPhishing,
		BlacklistCSAM, BlacklistOther,
	} {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if BlacklistType("RUDENESS").IsValid() {
		t.Error("unknown type accepted")
	}
}

func TestBlacklistActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		rec  Blacklist
		want bool
	}{
		{name: "in force", rec: Blacklist{}, want: true},
		{name: "lifted", rec: Blacklist{Lifted: true}, want: false},
		{name: "expired", rec: Blacklist{Expires: &past}, want: false},
		{name: "not yet expired", rec: Blacklist{Expires: &future}, want: true},
		{name: "lifted and unexpired", rec: Blacklist{Lifted: true, Expires: &future}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Active(now); got != tt.want {
				t.Errorf("Active = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperatorRedacted(t *testing.T) {
	op := &Operator{UUID: "u", Name: "alice", APIKey: "secret"}
	red := op.Redacted()
	if red.APIKey != "" {
		t.Error("API key not blanked")
	}
	if red.Name != "alice" || red.UUID != "u" {
		t.Error("redaction dropped unrelated fields")
	}
	if op.APIKey != "secret" {
		t.Error("redaction mutated the original")
	}
}

func TestAuditTypeIsValid(t *testing.T) {
	if !AuditOperatorCreated.IsValid() || !AuditOther.IsValid() {
		t.Error("known types rejected")
	}
	if AuditType("SOMETHING_ELSE").IsValid() {
		t.Error("unknown type accepted")
	}
}
