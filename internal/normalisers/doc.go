// Package normalisers provides implementations of the Normaliser interface
// for the file formats the ingest command accepts. Each normaliser knows how
// to extract text content from specific MIME types.
//
// Normalisers are registered with services.NormaliserRegistry at startup.
package normalisers
