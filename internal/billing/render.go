package billing

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/models"
)

// LogRenderer announces finished bills on the log. It stands in for a document
// renderer when none is configured.
type LogRenderer struct {
	Log logrus.FieldLogger
}

func (r LogRenderer) Render(ctx context.Context, bill *models.Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.Log.WithFields(logrus.Fields{
		"bill_number": bill.BillNumber,
		"customer":    bill.FullName,
		"amount":      bill.Total.String(),
		"items":       len(bill.Items),
	}).Info("bill ready for printing")
	return nil
}
