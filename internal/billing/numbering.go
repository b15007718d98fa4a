package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type BillNumberSource interface {
	ListBillNumbers(ctx context.Context) ([]string, error)
}

// Numberer derives the next bill number as one more than the highest number
// already persisted under the configured prefix. Numbers that do not parse are
// ignored.
type Numberer struct {
	source BillNumberSource
	prefix string
	width  int
}

func NewNumberer(source BillNumberSource, prefix string, width int) *Numberer {
	if width < 1 {
		width = 1
	}
	return &Numberer{source: source, prefix: prefix, width: width}
}

func (n *Numberer) Next(ctx context.Context) (string, int64, error) {
	numbers, err := n.source.ListBillNumbers(ctx)
	if err != nil {
		return "", 0, &StoreUnavailableError{Op: "scan bill numbers", Err: err}
	}

	var highest int64
	for _, number := range numbers {
		if value, ok := ParseBillNumber(n.prefix, number); ok && value > highest {
			highest = value
		}
	}

	next := highest + 1
	return FormatBillNumber(n.prefix, n.width, next), next, nil
}

// CheckPrefix fails when the ledger already holds numbers issued under another
// prefix. Uniqueness is kept on the numeric value alone, so a ledger's prefix
// cannot change once bills exist.
func (n *Numberer) CheckPrefix(ctx context.Context) error {
	numbers, err := n.source.ListBillNumbers(ctx)
	if err != nil {
		return &StoreUnavailableError{Op: "scan bill numbers", Err: err}
	}

	for _, number := range numbers {
		i := strings.LastIndex(number, "/")
		if i < 0 {
			continue
		}
		prefix := number[:i]
		if _, ok := ParseBillNumber(prefix, number); ok && prefix != n.prefix {
			return validationf("bill_prefix",
				"ledger holds %s issued under prefix %q; bill prefix %q cannot replace it", number, prefix, n.prefix)
		}
	}
	return nil
}

func FormatBillNumber(prefix string, width int, value int64) string {
	return fmt.Sprintf("%s/%0*d", prefix, width, value)
}

func ParseBillNumber(prefix, number string) (int64, bool) {
	digits, ok := strings.CutPrefix(number, prefix+"/")
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
