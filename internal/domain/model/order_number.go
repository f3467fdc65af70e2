package model

import (
	"math/rand"
	"strings"
	"time"
)

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ORD-YYMMDD-XXXXXX（末尾は36進6桁）
func NewOrderNumber(now time.Time, rnd *rand.Rand) string {
	var b strings.Builder
	b.Grow(17)
	b.WriteString("ORD-")
	b.WriteString(now.Format("060102"))
	b.WriteByte('-')
	for i := 0; i < 6; i++ {
		var n int
		if rnd != nil {
			n = rnd.Intn(len(orderNumberAlphabet))
		} else {
			n = rand.Intn(len(orderNumberAlphabet))
		}
		b.WriteByte(orderNumberAlphabet[n])
	}
	return b.String()
}
