// Package vector holds chunk embeddings in memory and exposes them as a dense matrix for
// brute-force cosine search.
package vector

// Matrix is a dense row-major Rows x Dim matrix. Row i belongs to the i-th chunk ID returned
// alongside it.
type Matrix struct {
	Rows int
	Dim  int
	Data []float32
}

// Row returns row i as a sub-slice of Data.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

// Scores returns the inner product of query with every row. len(query) must equal Dim.
func (m Matrix) Scores(query []float32) []float64 {
	scores := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		scores[i] = InnerProduct(m.Row(i), query)
	}
	return scores
}
