package provider

import "testing"

func TestNewClaudeProvider_Success(t *testing.T) {
	p, err := NewClaudeProvider("sk-ant-REDACTED", "", testLogger())
	if err != nil {
		t.Fatalf("NewClaudeProvider failed: %v", err)
	}

	if p.Name() != "claude" {
		t.Errorf("Expected name claude, got %s", p.Name())
	}
	if p.Model() == "" {
		t.Error("Expected default model to be set")
	}
}

func TestNewClaudeProvider_MissingKey(t *testing.T) {
	_, err := NewClaudeProvider("", "", testLogger())
	if err == nil {
		t.Fatal("Expected error for missing API key, got nil")
	}
}

func TestNewClaudeProvider_CustomModel(t *testing.T) {
	custom := "claude-3-5-haiku-20241022"
	p, err := NewClaudeProvider("sk-ant-REDACTED", custom, testLogger())
	if err != nil {
		t.Fatalf("NewClaudeProvider failed: %v", err)
	}

	if p.Model() != custom {
		t.Errorf("Expected model %s, got %s", custom, p.Model())
	}
}
