// Package masking redacts personally identifying data from log fields and
// stored payloads before they leave process memory.
package masking

// Masker applies one redaction rule to a string and reports whether it
// changed anything.
type Masker interface {
	Name() string
	Mask(data string) (string, bool)
}
