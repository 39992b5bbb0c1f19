// Package peptide maps bit streams onto fixed-length residue sequences and back.
//
// A peptide is made of an optional index prefix, a payload region carrying
// data bits and filler residues completing the fixed length. The index prefix
// is the big-endian value of the peptide number written in base |alphabet|.
package peptide
