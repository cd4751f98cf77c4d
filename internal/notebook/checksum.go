package notebook

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

type sourceChecksumEntry struct {
	Index int      `json:"index"`
	Lines []string `json:"lines"`
}

type sourceChecksumPayload struct {
	Cells []sourceChecksumEntry `json:"cells"`
}

// SourceChecksum returns a short, stable checksum that identifies the executed
// code (the ordered code cells of the document), independent of markdown and
// raw cells.
//
// It computes MD5 over a canonical JSON representation and returns the first 6
// hex characters (equivalent to `md5sum | cut -c1-6`).
func SourceChecksum(cells []CodeCell) (string, error) {
	entries := make([]sourceChecksumEntry, 0, len(cells))
	for _, c := range cells {
		entries = append(entries, sourceChecksumEntry{Index: c.Index, Lines: c.Lines})
	}

	payload := sourceChecksumPayload{Cells: entries}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(b)
	hexStr := hex.EncodeToString(sum[:])
	if len(hexStr) > 6 {
		hexStr = hexStr[:6]
	}
	return hexStr, nil
}
