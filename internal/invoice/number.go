package invoice

import (
	"fmt"
	"regexp"
	"strconv"
)

// seed for users that have never issued an invoice
const seedNumber = "00001"

// last contiguous digit run plus whatever trails it
var lastDigitRun = regexp.MustCompile(`(\d+)(\D*)$`)

// NextNumber produces the successor of an invoice sequence value. The last
// contiguous digit run is incremented in place, keeping the surrounding
// prefix/suffix and the original zero-pad width; the width grows when the
// increment overflows it ("INV-9999" -> "INV-10000"). Values without any
// digits get a "-001" run appended, and the empty sequence starts at "00001".
func NextNumber(current string) string {
	if current == "" {
		return seedNumber
	}

	m := lastDigitRun.FindStringSubmatchIndex(current)

	if m == nil {
		return current + "-001"
	}

	prefix := current[:m[2]]
	digits := current[m[2]:m[3]]
	suffix := current[m[4]:m[5]]

	n, err := strconv.ParseUint(digits, 10, 64)

	if err != nil {
		// digit run too large to parse; treat like a non-numeric value
		return current + "-001"
	}

	return prefix + fmt.Sprintf("%0*d", len(digits), n+1) + suffix
}
