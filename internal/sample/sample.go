// Package sample bundles the demo transaction history used by the
// "Use Sample Data" entry point. It feeds the same SubmitData command as a
// real file upload.
package sample

import (
	"bytes"
	_ "embed"
)

//go:embed transactions.csv
var data []byte

// Filename is the name the demo data is uploaded under.
const Filename = "sample_transactions.csv"

// Data returns a copy of the demo CSV.
func Data() []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// Count reports the number of transactions in the demo data.
func Count() int {
	return bytes.Count(bytes.TrimRight(data, "\n"), []byte("\n")) // rows minus header
}
