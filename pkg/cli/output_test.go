/*
 * Copyright (c) 2026 RaftKV Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"testing"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected OutputFormat
	}{
		{"table", FormatTable},
		{"TABLE", FormatTable},
		{"Table", FormatTable},
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"plain", FormatPlain},
		{"PLAIN", FormatPlain},
		{"", FormatTable},
		{"unknown", FormatTable},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseOutputFormat(tt.input)
			if result != tt.expected {
				t.Errorf("ParseOutputFormat(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewTable(t *testing.T) {
	table := NewTable("ID", "Name", "Email")

	if len(table.headers) != 3 {
		t.Errorf("Expected 3 headers, got %d", len(table.headers))
	}
	if table.headers[0] != "ID" {
		t.Errorf("Expected first header 'ID', got '%s'", table.headers[0])
	}
	if table.format != FormatTable {
		t.Errorf("Expected default format FormatTable, got %v", table.format)
	}
	if len(table.rows) != 0 {
		t.Errorf("Expected 0 rows, got %d", len(table.rows))
	}
}

func TestTableAddRow(t *testing.T) {
	table := NewTable("ID", "Name")
	table.AddRow("1", "Alice")
	table.AddRow("2", "Bob")

	if len(table.rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(table.rows))
	}
	if table.rows[0][0] != "1" || table.rows[0][1] != "Alice" {
		t.Errorf("First row mismatch: got %v", table.rows[0])
	}
}

func TestTableSetFormat(t *testing.T) {
	table := NewTable("ID")
	table.SetFormat(FormatJSON)

	if table.format != FormatJSON {
		t.Errorf("Expected FormatJSON, got %v", table.format)
	}
}
