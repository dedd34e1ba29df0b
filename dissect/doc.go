// Package dissect reads, analyzes and re-emits DM_26 demo recordings from
// Quake-III-derived engines. A demo is decoded losslessly through the
// adaptive Huffman payload codec, the bit-level message buffer and the
// table-driven delta codec into typed instructions and fully resolved
// snapshots, and can be written back wire-compatibly.
package dissect
