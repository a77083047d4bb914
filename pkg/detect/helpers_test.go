package detect

import (
	"git.tcp.direct/kayos/common/entropy"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(entropy.RNG(256))
	}
	return b
}
