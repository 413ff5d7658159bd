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

/*
Key Collation
=============

Ordered key listings (dump and console output) compare keys through a
Collator so callers can choose between raw byte order, case-insensitive
order, and locale-aware Unicode order (UTS #10 via golang.org/x/text).
The store itself never depends on a particular ordering.
*/
package store

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collation names accepted by GetCollator.
const (
	CollationBinary  = "binary"
	CollationNocase  = "nocase"
	CollationUnicode = "unicode"
)

// Collator provides string comparison based on collation rules.
type Collator interface {
	// Compare compares two strings according to collation rules.
	// Returns -1 if a < b, 0 if a == b, 1 if a > b.
	Compare(a, b string) int
}

// BinaryCollator uses strict byte-wise comparison.
type BinaryCollator struct{}

// Compare implements Collator.
func (c *BinaryCollator) Compare(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// NocaseCollator uses case-insensitive comparison.
type NocaseCollator struct{}

// Compare implements Collator.
func (c *NocaseCollator) Compare(a, b string) int {
	aLower := strings.ToLower(a)
	bLower := strings.ToLower(b)
	if aLower < bLower {
		return -1
	}
	if aLower > bLower {
		return 1
	}
	return 0
}

// UnicodeCollator uses Unicode collation with locale support.
type UnicodeCollator struct {
	collator *collate.Collator
	locale   string
}

// NewUnicodeCollator creates a new Unicode collator for the given locale.
func NewUnicodeCollator(locale string) *UnicodeCollator {
	tag := language.Make(locale)
	if tag == language.Und {
		tag = language.English
	}
	return &UnicodeCollator{
		collator: collate.New(tag, collate.Loose),
		locale:   locale,
	}
}

// Compare implements Collator.
func (c *UnicodeCollator) Compare(a, b string) int {
	return c.collator.CompareString(a, b)
}

// GetCollator returns a Collator for the given collation name and locale.
// Unknown names fall back to binary order.
func GetCollator(name, locale string) Collator {
	switch name {
	case CollationNocase:
		return &NocaseCollator{}
	case CollationUnicode:
		return NewUnicodeCollator(locale)
	default:
		return &BinaryCollator{}
	}
}

// SortKeys sorts keys in place using the given collator. A nil collator
// sorts in byte order.
func SortKeys(keys []string, c Collator) {
	if c == nil {
		c = &BinaryCollator{}
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.Compare(keys[i], keys[j]) < 0
	})
}
