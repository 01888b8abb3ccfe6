package extract

// Plaintext extracts .txt files verbatim.
type Plaintext struct{}

// NewPlaintext creates the plain text extractor.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

// Extensions returns the extensions handled by this extractor.
func (p *Plaintext) Extensions() []string {
	return []string{".txt", ".text"}
}

// Extract returns the file content unmodified.
func (p *Plaintext) Extract(data []byte) (string, error) {
	return string(data), nil
}
