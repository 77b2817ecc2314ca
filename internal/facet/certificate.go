package facet

import "sort"

// Certificate returns the set of sub-combinations (as canonical strings) the
// combination is credited with covering, up to the given coverage strength.
// Strength <=1 yields the single assignments; strength >=2 additionally
// yields every assignment pair across distinct facets. Downstream auditors
// use the certificate to verify coverage claims without re-deriving them.
func (c Combination) Certificate(strength int) []string {
	sorted := c.sorted()

	var cert []string
	for _, a := range sorted {
		cert = append(cert, a.String())
	}

	if strength >= 2 {
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				cert = append(cert, sorted[i].String()+"&"+sorted[j].String())
			}
		}
	}

	sort.Strings(cert)
	return cert
}
