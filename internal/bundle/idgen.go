package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/stlpine/clustergo/pkg/models"
)

// computeBundleID hashes the canonical inputs spec.md §3 names: canonical
// function source text, the sorted (path, content hash) pairs of every
// included source file, the sorted content hashes of every data file, the
// interpreter version, and a digest of the target's identity fields. The
// first 16 bytes of the digest, hex-encoded, are the bundle id.
func computeBundleID(canonicalSource string, sources []models.SourceFile, data []models.DataFile, interpreterVersion string, target models.ClusterTarget) string {
	sourceKeys := make([]string, len(sources))
	for i, s := range sources {
		sourceKeys[i] = s.RelPath + "=" + s.ContentHash
	}
	sort.Strings(sourceKeys)

	dataHashes := make([]string, len(data))
	for i, d := range data {
		dataHashes[i] = d.ContentHash
	}
	sort.Strings(dataHashes)

	h := sha256.New()
	h.Write([]byte(canonicalSource))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sourceKeys, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(dataHashes, ",")))
	h.Write([]byte{0})
	h.Write([]byte(interpreterVersion))
	h.Write([]byte{0})
	h.Write([]byte(targetIdentityDigest(target)))

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// targetIdentityDigest hashes the (host, port, username) triple that
// distinguishes one execution target from another for bundle-id and
// connection-pooling purposes (models.ClusterTarget.Identity).
func targetIdentityDigest(target models.ClusterTarget) string {
	host, port, username := target.Identity()
	sum := sha256.Sum256([]byte(host + ":" + strconv.Itoa(port) + ":" + username))
	return hex.EncodeToString(sum[:])
}
