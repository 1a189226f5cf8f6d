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

// Package fasta provides reference genome access for the reassembler:
// an in-memory reference parsed from FASTA, and a memory-mapped
// .elfasta reference for production runs.
package fasta

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/exascience/elcall/intervals"

	"golang.org/x/sys/unix"
)

var iupacUpperTable = map[byte]byte{
	'A': 'A', 'a': 'A',
	'C': 'C', 'c': 'C',
	'G': 'G', 'g': 'G',
	'T': 'T', 't': 'T',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
}

// ToUpperAndN normalizes a FASTA base: lower case is converted to upper
// case, and ambiguity codes other than N are converted to N.
func ToUpperAndN(base byte) byte {
	if n, ok := iupacUpperTable[base]; ok {
		return n
	}
	return base
}

func contigFromHeader(b []byte) string {
	i := 1
	for ; i < len(b); i++ {
		if c := b[i]; c >= '!' && c <= '~' {
			break
		}
	}
	j := i + 1
	for ; j < len(b); j++ {
		if c := b[j]; c < '!' || c > '~' {
			break
		}
	}
	return string(b[i:j])
}

// Reference provides base sequences of a reference genome by contig
// interval. Fetched sequences are upper case with ambiguity codes
// normalized to N.
type Reference struct {
	contigs map[string][]byte
	mapped  []byte
	file    *os.File
}

// NewReference creates a Reference from in-memory contig sequences.
// The sequences are normalized in place.
func NewReference(contigs map[string][]byte) *Reference {
	for _, seq := range contigs {
		for i, base := range seq {
			seq[i] = ToUpperAndN(base)
		}
	}
	return &Reference{contigs: contigs}
}

// ParseFasta reads a reference genome from a FASTA file.
func ParseFasta(filename string) (*Reference, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	contigs := make(map[string][]byte)
	var contig string
	var seq []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		if b[0] == '>' {
			if contig != "" {
				contigs[contig] = seq
			}
			contig = contigFromHeader(b)
			if contig == "" {
				return nil, fmt.Errorf("invalid fasta file %v - empty contig name", filename)
			}
			seq = nil
		} else {
			if contig == "" {
				return nil, fmt.Errorf("invalid fasta file %v - missing first header", filename)
			}
			seq = append(seq, b...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if contig == "" {
		return nil, fmt.Errorf("empty fasta file %v", filename)
	}
	contigs[contig] = seq
	return NewReference(contigs), nil
}

// ElfastaMagic is the magic byte sequence that every .elfasta file starts with.
var ElfastaMagic = []byte{0x31, 0xFA, 0x57, 0xA1} // 31FA57A1 => ELFASTA1

// ToElfasta stores a reference into an mmappable .elfasta file.
func (reference *Reference) ToElfasta(filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := file.Close(); err == nil {
			err = nerr
		}
	}()
	out := bufio.NewWriter(file)
	if _, err = out.Write(ElfastaMagic); err != nil {
		return err
	}
	var varint [binary.MaxVarintLen64]byte
	for contig, seq := range reference.contigs {
		if _, err = out.WriteString(contig); err != nil {
			return err
		}
		if err = out.WriteByte('\t'); err != nil {
			return err
		}
		n := binary.PutUvarint(varint[:], uint64(len(seq)))
		if _, err = out.Write(varint[:n]); err != nil {
			return err
		}
		if _, err = out.Write(seq); err != nil {
			return err
		}
	}
	if err = out.WriteByte('\n'); err != nil {
		return err
	}
	return out.Flush()
}

// OpenElfasta memory-maps a .elfasta file as a Reference.
func OpenElfasta(filename string) (*Reference, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	result := &Reference{
		contigs: make(map[string][]byte),
		mapped:  data,
		file:    file,
	}
	fail := func(format string, args ...interface{}) (*Reference, error) {
		_ = result.Close()
		return nil, fmt.Errorf(format, args...)
	}
	for i, b := range ElfastaMagic {
		if i >= len(data) || data[i] != b {
			return fail("%v is not a .elfasta file - invalid magic byte sequence", filename)
		}
	}
	index := len(ElfastaMagic)
	for index < len(data) && data[index] != '\n' {
		start := index
		for index < len(data) && data[index] != '\t' {
			index++
		}
		if index == start || index == len(data) {
			return fail("invalid contig name in elfasta file %v", filename)
		}
		contig := string(data[start:index])
		index++
		size, n := binary.Uvarint(data[index:])
		if n <= 0 {
			return fail("bad number of bytes while parsing size in elfasta file %v", filename)
		}
		index += n
		if index+int(size) > len(data) {
			return fail("truncated sequence for contig %v in elfasta file %v", contig, filename)
		}
		result.contigs[contig] = data[index : index+int(size)]
		index += int(size)
	}
	return result, nil
}

// Close unmaps a memory-mapped reference. It is a no-op for in-memory
// references.
func (reference *Reference) Close() error {
	reference.contigs = nil
	if reference.mapped == nil {
		return nil
	}
	err := unix.Munmap(reference.mapped)
	reference.mapped = nil
	if nerr := reference.file.Close(); err == nil {
		err = nerr
	}
	reference.file = nil
	return err
}

// ContigSize returns the length of the given contig, or zero for
// unknown contigs.
func (reference *Reference) ContigSize(contig string) int32 {
	return int32(len(reference.contigs[contig]))
}

// ContigRegion returns the full interval of the given contig.
func (reference *Reference) ContigRegion(contig string) intervals.Interval {
	return intervals.Interval{Contig: contig, Start: 0, End: reference.ContigSize(contig)}
}

// FetchSequence returns the bases covered by the given interval,
// clipped to the contig bounds.
func (reference *Reference) FetchSequence(interval intervals.Interval) string {
	seq := reference.contigs[interval.Contig]
	start, end := interval.Start, interval.End
	if start < 0 {
		start = 0
	}
	if end > int32(len(seq)) {
		end = int32(len(seq))
	}
	if start >= end {
		return ""
	}
	return string(seq[start:end])
}
