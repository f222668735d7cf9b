// Package serialization implements the tensor text encoding used for
// parameter files.
//
// A record is one line holding a JSON-style array:
//
//	matrix: [[0.1, -2], [3.5, 4e-07]]
//	vector: [0.25, -1]
//
// Each record is terminated by a newline. Floats are written with the
// shortest representation that parses back to the same float64, so a
// written tensor reads back bit-for-bit.
//
// Example usage:
//
//	w := serialization.NewWriter(f)
//	if err := w.WriteMatrix(weight); err != nil {
//	    return err
//	}
//	if err := w.WriteVector(bias); err != nil {
//	    return err
//	}
//
//	r := serialization.NewReader(f)
//	weight, err := r.ReadMatrix()
//	bias, err := r.ReadVector()
package serialization
