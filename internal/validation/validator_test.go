// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package validation

import (
	"strings"
	"testing"
)

type verifyRequest struct {
	Checksum string `validate:"required,hexdigest"`
	Filename string `validate:"required"`
}

type restoreRequest struct {
	Chunk       int `validate:"gte=0"`
	TotalChunks int `validate:"gte=1,lte=10000"`
}

func TestValidateStructPasses(t *testing.T) {
	req := verifyRequest{
		Checksum: strings.Repeat("ab", 32),
		Filename: "books_db_backup.zip",
	}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("expected validation to pass, got: %v", err)
	}
}

func TestValidateStructMissingRequired(t *testing.T) {
	err := ValidateStruct(&verifyRequest{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %s", apiErr.Code)
	}
}

func TestHexDigestValidator(t *testing.T) {
	tests := []struct {
		name     string
		checksum string
		valid    bool
	}{
		{"sha256 lowercase", strings.Repeat("a1", 32), true},
		{"md5 length", strings.Repeat("0f", 16), true},
		{"sha1 length", strings.Repeat("9c", 20), true},
		{"uppercase hex", strings.Repeat("AB", 32), true},
		{"wrong length", "abcdef", false},
		{"non-hex characters", strings.Repeat("zz", 32), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := verifyRequest{Checksum: tt.checksum, Filename: "x.zip"}
			err := ValidateStruct(&req)
			if tt.valid && err != nil {
				t.Errorf("expected %q to validate, got: %v", tt.checksum, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to fail validation", tt.checksum)
			}
		})
	}
}

func TestTranslatedMessages(t *testing.T) {
	err := ValidateStruct(&restoreRequest{Chunk: -1, TotalChunks: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	if !strings.Contains(msg, "greater than or equal to") {
		t.Errorf("expected gte translation in %q", msg)
	}
}
