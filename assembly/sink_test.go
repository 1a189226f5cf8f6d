// elCall: a high-performance candidate variant generator based on local reassembly.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elcall/blob/master/LICENSE.txt>.

package assembly

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSink(t *testing.T) {
	dir, err := ioutil.TempDir("", "elcall-sink")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()
	pathname := filepath.Join(dir, "candidates.tsv")
	sink, err := NewFileSink(pathname)
	if err != nil {
		t.Fatal(err)
	}
	variants := []Variant{
		{"1", 7, "A", "C"},
		{"1", 12, "GCT", ""},
		{"2", 3, "", "TT"},
	}
	if err := AppendVariants(sink, variants); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(pathname); !os.IsNotExist(err) {
		t.Error("final file exists before Close")
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	content, err := ioutil.ReadFile(pathname)
	if err != nil {
		t.Fatal(err)
	}
	expected := "1\t7\tA\tC\n1\t12\tGCT\t.\n2\t3\t.\tTT\n"
	if string(content) != expected {
		t.Errorf("file sink wrote %q", content)
	}
}
