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

/*
Package assembly implements candidate variant discovery by local
reassembly: reads overlapping an active region are threaded together
with the reference into a de Bruijn graph, the graph is cleaned, and
bubble paths diverging from the reference are translated into
normalized, decomposed, de-duplicated candidate variants.

The entry point is LocalReassembler. It owns the read buffer, the
bins an active region is decomposed into, and the masked-sequence
buffer; each (bin, kmer size) pair is assembled by a fresh assembler
that is used on a single goroutine only.
*/
package assembly
