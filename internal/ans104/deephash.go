package ans104

import (
	"crypto/sha512"
	"strconv"
)

// Arweave deep-hash over a flat list of byte chunks. Each chunk is hashed
// as a tagged blob ("blob" + byte length), the list itself as a tagged
// chain ("list" + element count) folded left with SHA-384. This is the
// message every ANS-104 signature covers.
func deepHashChunks(chunks [][]byte) [sha512.Size384]byte {
	acc := sha512.Sum384([]byte("list" + strconv.Itoa(len(chunks))))
	for _, c := range chunks {
		h := deepHashBlob(c)
		acc = sha512.Sum384(append(acc[:], h[:]...))
	}
	return acc
}

func deepHashBlob(b []byte) [sha512.Size384]byte {
	tag := sha512.Sum384([]byte("blob" + strconv.Itoa(len(b))))
	sum := sha512.Sum384(b)
	return sha512.Sum384(append(tag[:], sum[:]...))
}
