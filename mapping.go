package belief

import "strings"

// Mapping is a contiguous run of layer names. It may run against the layer order, in which case
// the weights along it are used transposed.
type Mapping []string

func (mp Mapping) String() string { return strings.Join(mp, "→") }

// Source is the first layer of the mapping.
func (mp Mapping) Source() string { return mp[0] }

// Target is the last layer of the mapping.
func (mp Mapping) Target() string { return mp[len(mp)-1] }

// Equal reports whether mp and other name the same layers in the same order.
func (mp Mapping) Equal(other Mapping) bool {
	if len(mp) != len(other) {
		return false
	}
	for i := range mp {
		if mp[i] != other[i] {
			return false
		}
	}
	return true
}

// Mapping returns the layers from src to tgt inclusive.
func (m *Model) Mapping(src, tgt string) (Mapping, error) {
	si, sok := m.index[src]
	ti, tok := m.index[tgt]
	if !sok {
		return nil, Configurationf("unknown layer %q", src)
	}
	if !tok {
		return nil, Configurationf("unknown layer %q", tgt)
	}
	step := 1
	if ti < si {
		step = -1
	}
	var retVal Mapping
	for i := si; ; i += step {
		retVal = append(retVal, m.units[i].Name())
		if i == ti {
			break
		}
	}
	return retVal, nil
}

// FullMapping runs from the first to the last layer.
func (m *Model) FullMapping() Mapping {
	mp, _ := m.Mapping(m.units[0].Name(), m.units[len(m.units)-1].Name())
	return mp
}

// checkMapping verifies that mp names existing layers, each adjacent to the next.
func (m *Model) checkMapping(mp Mapping) error {
	if len(mp) == 0 {
		return Configurationf("empty mapping")
	}
	var dir int
	for i, name := range mp {
		if _, ok := m.index[name]; !ok {
			return Configurationf("mapping %v: unknown layer %q", mp, name)
		}
		if i == 0 {
			continue
		}
		d := m.index[name] - m.index[mp[i-1]]
		if (d != 1 && d != -1) || (dir != 0 && d != dir) {
			return Configurationf("mapping %v is not contiguous at %q", mp, name)
		}
		dir = d
	}
	return nil
}

func (m *Model) mappingUnits(mp Mapping) []Units {
	retVal := make([]Units, len(mp))
	for i, name := range mp {
		retVal[i] = m.units[m.index[name]]
	}
	return retVal
}
