package transmission

// TransmissionDict maps source pillar → target pillar → signed coefficient.
// It is the contract consumed by the cascade simulator; the diagonal is zero.
type TransmissionDict map[Pillar]map[Pillar]float64

// MatrixToDict converts a response matrix (m[i][j] is the response of pillar
// i to a shock in pillar j) into the source → target mapping. Diagonal entries
// are set to zero.
func MatrixToDict(m Matrix, pillars []Pillar) TransmissionDict {
	d := make(TransmissionDict, len(pillars))
	for j, source := range pillars {
		row := make(map[Pillar]float64, len(pillars))
		for i, target := range pillars {
			if i == j || i >= len(m) || j >= len(m[i]) {
				row[target] = 0
				continue
			}
			row[target] = m[i][j]
		}
		d[source] = row
	}
	return d
}

// DictToMatrix is the inverse of MatrixToDict for the same pillar order.
// Missing entries read as zero.
func DictToMatrix(d TransmissionDict, pillars []Pillar) Matrix {
	m := NewMatrix(len(pillars), len(pillars))
	for j, source := range pillars {
		row := d[source]
		for i, target := range pillars {
			if i == j {
				continue
			}
			m[i][j] = row[target]
		}
	}
	return m
}

// Get returns the coefficient from source to target, zero when absent
func (d TransmissionDict) Get(source, target Pillar) float64 {
	return d[source][target]
}
