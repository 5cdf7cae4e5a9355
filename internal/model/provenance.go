package model

// FieldSource identifies the pipeline stage that produced a field value.
type FieldSource string

const (
	SourceStructured FieldSource = "structured"
	SourceDiscovery  FieldSource = "discovery"
	SourceEnrichment FieldSource = "enrichment"
)

// Default confidence per source. Structured feeds are authoritative for what
// they carry, discovery parses are weaker, enrichment is best-effort. The
// ordering matters: merges keep the higher-confidence value.
const (
	ConfidenceStructured = 90
	ConfidenceDiscovery  = 70
	ConfidenceEnrichment = 60
)

// FieldProvenance records where a populated field value came from and how
// confident that stage was, on a 0-100 scale.
type FieldProvenance struct {
	Source     FieldSource `json:"source"`
	Confidence int         `json:"confidence"`
}

// DefaultConfidence returns the standard confidence for a source.
func DefaultConfidence(src FieldSource) int {
	switch src {
	case SourceStructured:
		return ConfidenceStructured
	case SourceDiscovery:
		return ConfidenceDiscovery
	case SourceEnrichment:
		return ConfidenceEnrichment
	default:
		return 0
	}
}

// Stamp records provenance for a field with the source's default confidence.
func (p *Product) Stamp(field string, src FieldSource) {
	p.StampConfidence(field, src, DefaultConfidence(src))
}

// StampConfidence records provenance for a field with an explicit confidence.
func (p *Product) StampConfidence(field string, src FieldSource, confidence int) {
	if p.Provenance == nil {
		p.Provenance = make(map[string]FieldProvenance)
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	p.Provenance[field] = FieldProvenance{Source: src, Confidence: confidence}
}

// FieldConfidence returns the recorded confidence for a field, 0 if unstamped.
func (p *Product) FieldConfidence(field string) int {
	return p.Provenance[field].Confidence
}

// AggregateConfidence is the mean provenance confidence across stamped fields.
// Used as the tie-breaker when deduplicating records for the same URL.
func (p *Product) AggregateConfidence() float64 {
	if len(p.Provenance) == 0 {
		return 0
	}
	total := 0
	for _, fp := range p.Provenance {
		total += fp.Confidence
	}
	return float64(total) / float64(len(p.Provenance))
}
