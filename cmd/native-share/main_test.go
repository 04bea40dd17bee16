package main

import (
	"encoding/json"
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/native-share:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "call", "manifest", "migrate", "clear", "ensure-db", "COMMS_URL", "DATABASE_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestCallArguments(t *testing.T) {
	args, err := callArguments("shareImage", []string{"/tmp/a.png", "Look"})
	if err != nil {
		t.Fatalf("%s - shareImage: %v", mainTestPrefix, err)
	}
	m := args.(map[string]string)
	if m["imagePath"] != "/tmp/a.png" || m["subject"] != "Look" {
		t.Errorf("%s - shareImage args = %v", mainTestPrefix, m)
	}

	args, err = callArguments("saveImageToGallery", []string{"/tmp/b.jpg"})
	if err != nil {
		t.Fatalf("%s - saveImageToGallery: %v", mainTestPrefix, err)
	}
	if _, ok := args.(map[string]string)["subject"]; ok {
		t.Errorf("%s - saveImageToGallery should not carry subject", mainTestPrefix)
	}

	if _, err := callArguments("shareImage", nil); err == nil {
		t.Errorf("%s - expected error for shareImage without path", mainTestPrefix)
	}

	args, err = callArguments("rotate", []string{`{"deg":90}`})
	if err != nil {
		t.Fatalf("%s - raw args: %v", mainTestPrefix, err)
	}
	if string(args.(json.RawMessage)) != `{"deg":90}` {
		t.Errorf("%s - raw args = %s", mainTestPrefix, args)
	}
	if _, err := callArguments("rotate", []string{"{bad"}); err == nil {
		t.Errorf("%s - expected error for malformed JSON arguments", mainTestPrefix)
	}
	if args, err := callArguments("rotate", nil); err != nil || args != nil {
		t.Errorf("%s - empty raw args = %v, %v", mainTestPrefix, args, err)
	}
}
