package models

// LifeDomain is one of the fixed life areas tracked by the life map
type LifeDomain string

const (
	DomainCareer        LifeDomain = "career"
	DomainRelationships LifeDomain = "relationships"
	DomainHealth        LifeDomain = "health"
	DomainFinances      LifeDomain = "finances"
	DomainLearning      LifeDomain = "learning"
	DomainCreativity    LifeDomain = "creativity"
	DomainPlay          LifeDomain = "play"
	DomainMeaning       LifeDomain = "meaning"
)

// AllDomains returns the domain enumeration in display order.
// A fresh slice is returned on every call.
func AllDomains() []LifeDomain {
	return []LifeDomain{
		DomainCareer,
		DomainRelationships,
		DomainHealth,
		DomainFinances,
		DomainLearning,
		DomainCreativity,
		DomainPlay,
		DomainMeaning,
	}
}

// IsValid reports whether d is part of the enumeration
func (d LifeDomain) IsValid() bool {
	for _, known := range AllDomains() {
		if d == known {
			return true
		}
	}
	return false
}

// UnexploredDomains returns the domains not present in explored, in enumeration order
func UnexploredDomains(explored []LifeDomain) []LifeDomain {
	seen := make(map[LifeDomain]bool, len(explored))
	for _, d := range explored {
		seen[d] = true
	}
	remaining := make([]LifeDomain, 0, len(AllDomains()))
	for _, d := range AllDomains() {
		if !seen[d] {
			remaining = append(remaining, d)
		}
	}
	return remaining
}
