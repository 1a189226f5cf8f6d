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
	"bufio"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// A SliceSink collects candidate variants in memory.
type SliceSink struct {
	Variants []Variant
}

// Append implements VariantSink.
func (s *SliceSink) Append(variant Variant) error {
	s.Variants = append(s.Variants, variant)
	return nil
}

// AppendVariants delivers a list of variants to a sink.
func AppendVariants(sink VariantSink, variants []Variant) error {
	for _, variant := range variants {
		if err := sink.Append(variant); err != nil {
			return err
		}
	}
	return nil
}

// A FileSink writes candidate variants as tab-separated
// (contig, position, ref, alt) lines. Output goes to a uniquely named
// temporary file that is atomically renamed to the final name on
// Close, so a crashed run never leaves a partial candidate table
// behind.
type FileSink struct {
	file     *os.File
	out      *bufio.Writer
	pathname string
}

// NewFileSink creates a file sink for the given final pathname.
func NewFileSink(pathname string) (*FileSink, error) {
	file, err := os.Create(pathname + "-" + uuid.New().String() + ".tmp")
	if err != nil {
		return nil, err
	}
	return &FileSink{
		file:     file,
		out:      bufio.NewWriter(file),
		pathname: pathname,
	}, nil
}

func appendAllele(buf []byte, allele string) []byte {
	if allele == "" {
		// empty alleles of fully trimmed indels
		return append(buf, '.')
	}
	return append(buf, allele...)
}

// Append implements VariantSink.
func (s *FileSink) Append(variant Variant) error {
	buf := make([]byte, 0, len(variant.Contig)+len(variant.Ref)+len(variant.Alt)+16)
	buf = append(buf, variant.Contig...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(variant.Pos), 10)
	buf = append(buf, '\t')
	buf = appendAllele(buf, variant.Ref)
	buf = append(buf, '\t')
	buf = appendAllele(buf, variant.Alt)
	buf = append(buf, '\n')
	_, err := s.out.Write(buf)
	return err
}

// Close flushes the sink and moves the temporary file to its final
// name.
func (s *FileSink) Close() (err error) {
	err = s.out.Flush()
	if nerr := s.file.Close(); err == nil {
		err = nerr
	}
	if err != nil {
		return err
	}
	return os.Rename(s.file.Name(), s.pathname)
}
