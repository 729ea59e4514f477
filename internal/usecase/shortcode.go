package usecase

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// codeAlphabet drops 0/O/1/I so codes survive being read over a counter.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	shortCodeLen     = 6
	shortCodeRetries = 1000
)

func randCode(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// fallbackCode is used when random 6-char generation keeps colliding: a
// timestamp plus random suffix, longer and effectively collision-free at
// the cost of being uglier to type.
func fallbackCode(now time.Time) string {
	return strings.ToUpper("X" + strconv.FormatInt(now.UnixMilli(), 36) + strconv.FormatInt(int64(rand.Intn(36*36*36)), 36))
}

// newOrderID builds a practically unique id; uniqueness is not required to
// be cryptographic, just unlikely to collide in one venue's lifetime.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("o_%d_%s", now.UnixMilli(), strconv.FormatInt(rand.Int63n(1<<31), 36))
}
