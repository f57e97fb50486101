// Package models defines data structures shared by the classification and
// summarization phases.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Sentinel clusters for records that could not be assigned a label.
const (
	// ClusterError marks a question whose LLM call failed.
	ClusterError = "error"
	// ClusterUnknown marks a question whose LLM response was unusable.
	ClusterUnknown = "unknown"
)

// ClusterFileExt is the extension of per-cluster record files.
const ClusterFileExt = ".jsonl"

// maxFileStem bounds the file name stem in bytes, well below the common
// 255-byte file name limit once the extension is added.
const maxFileStem = 200

// Record is one classified question. It is written as a single JSON line
// to the file of its cluster.
type Record struct {
	Question string `json:"question"`
	Cluster  string `json:"cluster"`
}

// IsSentinel reports whether cluster is one of the failure sentinels.
func IsSentinel(cluster string) bool {
	return cluster == ClusterError || cluster == ClusterUnknown
}

// ClusterFileName maps a cluster label to its file name inside the clusters
// directory. Path separators are replaced so a label can never escape the
// directory. Labels longer than maxFileStem bytes are cut on a rune
// boundary and suffixed with a short hash of the full label, so distinct
// long labels keep distinct files.
func ClusterFileName(cluster string) string {
	cluster = strings.TrimSpace(cluster)
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, cluster)

	if name == "" || name == "." || name == ".." {
		name = ClusterUnknown
	}
	if len(name) > maxFileStem {
		sum := sha256.Sum256([]byte(cluster))
		suffix := "-" + hex.EncodeToString(sum[:4])
		name = cutRunes(name, maxFileStem-len(suffix)) + suffix
	}
	return name + ClusterFileExt
}

// cutRunes returns the longest prefix of s of at most n bytes that ends on
// a rune boundary.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ClusterName recovers the cluster label from a cluster file name. Labels
// that were shortened or had separators replaced do not round-trip; read
// the cluster field of a record when the exact label matters.
func ClusterName(fileName string) string {
	return strings.TrimSuffix(fileName, ClusterFileExt)
}
