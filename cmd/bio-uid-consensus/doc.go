/*
Command bio-uid-consensus collapses UID-tagged FASTQ reads into one
quality-weighted consensus read per UID cluster, correcting sequencing error
introduced between PCR duplicates of the same starting molecule.

Each read's sequence line is expected to carry its unique molecular identifier
as a fixed-length prefix and suffix, with a constant adapter sequence
separating each identifier half from the payload read. Reads whose UIDs are
within a configurable Hamming distance of an existing cluster are folded into
that cluster's consensus; everything else starts a new cluster.

Sample usage:
bio-uid-consensus --output consensus.fastq.gz reads.fastq.gz
*/
package main
