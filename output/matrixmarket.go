// Package output writes assembled systems in MatrixMarket exchange format.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/notargets/femassemble/utils"
)

// WriteMatrixMarket writes the matrix in coordinate format with 1-based
// indices, one entry per stored non-zero in row order.
func WriteMatrixMarket(w io.Writer, m *utils.CSR) (err error) {
	bw := bufio.NewWriter(w)
	nr, nc := m.Dims()
	bw.WriteString("%%MatrixMarket matrix coordinate real general\n")
	if name := m.Name(); name != "" {
		fmt.Fprintf(bw, "%% %s\n", name)
	}
	fmt.Fprintf(bw, "%d %d %d\n", nr, nc, m.NNZ())
	m.DoNonZero(func(i, j int, v float64) {
		fmt.Fprintf(bw, "%d %d %s\n", i+1, j+1, formatFloat(v))
	})
	return bw.Flush()
}

// WriteVector writes a dense column vector in array format.
func WriteVector(w io.Writer, v []float64) (err error) {
	bw := bufio.NewWriter(w)
	bw.WriteString("%%MatrixMarket matrix array real general\n")
	fmt.Fprintf(bw, "%d 1\n", len(v))
	for _, x := range v {
		bw.WriteString(formatFloat(x))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteDOFMap writes one "node dof" line per node, nodes 0-based as in the
// mesh, dof 1-based with 0 for a Dirichlet node.
func WriteDOFMap(w io.Writer, node2DOF []int) (err error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# node dof, %d nodes\n", len(node2DOF))
	for n, d := range node2DOF {
		if d < 0 {
			d = 0
		}
		fmt.Fprintf(bw, "%d %d\n", n, d)
	}
	return bw.Flush()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', 17, 64) }
