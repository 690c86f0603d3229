// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAnalysisID(t *testing.T) {
	assert.NoError(t, ValidateAnalysisID("3f2a1b4c-0d9e-4f6a-8b7c-1234567890ab"))

	for _, id := range []string{
		"",
		"not-a-uuid",
		"3F2A1B4C-0D9E-4F6A-8B7C-1234567890AB", // uppercase
		"../../../etc/passwd",
		"3f2a1b4c-0d9e-4f6a-8b7c-1234567890ab\n",
	} {
		assert.Error(t, ValidateAnalysisID(id), id)
	}
}

func TestValidateSnippet(t *testing.T) {
	assert.NoError(t, ValidateSnippet("x = 1", 1024))
	assert.Error(t, ValidateSnippet("", 1024))
	assert.Error(t, ValidateSnippet(strings.Repeat("a", 2048), 1024))
	assert.Error(t, ValidateSnippet("x = \xff\xfe", 1024))
}
