package fetcher

import (
	"bytes"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// SameAddress compares two TON addresses regardless of their textual form,
// so raw "0:..." and user-friendly base64 encodings of one account match.
func SameAddress(a, b string) bool {
	pa, errA := parseAddress(a)
	pb, errB := parseAddress(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return pa.Workchain() == pb.Workchain() && bytes.Equal(pa.Data(), pb.Data())
}

func parseAddress(s string) (*address.Address, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		return address.ParseRawAddr(s)
	}
	return address.ParseAddr(s)
}
