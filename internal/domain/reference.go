package domain

// Reference is a single retrieval result surfaced to the caller.
type Reference struct {
	ItemID     string   `json:"item_id"`
	BaseID     string   `json:"base_id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Similarity float64  `json:"similarity"`
	Source     string   `json:"source"` // human-readable label: base name + item title
	Type       ItemType `json:"type"`
}

// signatureLength bounds the content prefix used for de-duplication.
const signatureLength = 100

// ContentSignature returns the dedup key for a piece of reference
// content: its first 100 characters (runes, so multi-byte text does not
// split mid-character).
func ContentSignature(content string) string {
	runes := []rune(content)
	if len(runes) <= signatureLength {
		return string(runes)
	}
	return string(runes[:signatureLength])
}
