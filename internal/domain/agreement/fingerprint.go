package agreement

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const fingerprintVersion = "v1"

// canonicalRequest fixes field order and normalisation so the digest only
// depends on the semantic content of a Request.
type canonicalRequest struct {
	Version           string              `json:"v"`
	ProductCode       string              `json:"product"`
	CustomerReference string              `json:"customer"`
	ContactEmail      string              `json:"contact"`
	Coverages         []canonicalCoverage `json:"coverages"`
	StartDate         string              `json:"start"`
}

type canonicalCoverage struct {
	Type       string `json:"type"`
	InsuredSum int64  `json:"insured"`
	Deductible int64  `json:"deductible"`
}

// Fingerprint returns a stable BLAKE2b-256 digest (hex) of req. Two requests
// share a fingerprint iff they carry the same logical payload.
func Fingerprint(req Request) string {
	c := canonicalRequest{
		Version:           fingerprintVersion,
		ProductCode:       strings.ToUpper(strings.TrimSpace(req.ProductCode)),
		CustomerReference: strings.TrimSpace(req.CustomerReference),
		ContactEmail:      strings.ToLower(strings.TrimSpace(req.ContactEmail)),
		Coverages:         make([]canonicalCoverage, 0, len(req.Coverages)),
	}
	for _, cov := range req.Coverages {
		c.Coverages = append(c.Coverages, canonicalCoverage{
			Type:       strings.ToUpper(strings.TrimSpace(cov.Type)),
			InsuredSum: cov.InsuredSum,
			Deductible: cov.Deductible,
		})
	}
	if !req.StartDate.IsZero() {
		c.StartDate = req.StartDate.UTC().Format("2006-01-02")
	}
	// Marshalling a struct of strings, ints and slices cannot fail.
	raw, _ := json.Marshal(c)
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
