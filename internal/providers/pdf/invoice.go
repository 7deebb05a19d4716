package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	_ = ctx
	m := newDocument()

	m.AddRow(14,
		text.NewCol(8, data.OwnerName, props.Text{Size: 14, Style: fontstyle.Bold}),
		text.NewCol(4, fmt.Sprintf("Invoice %s", data.InvoiceNumber), props.Text{
			Size: 11, Align: align.Right,
		}),
	)
	m.AddRow(6,
		text.NewCol(8, data.BillToName, props.Text{Size: 9}),
		text.NewCol(4, fmt.Sprintf("Issued %s", data.IssueDate), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(6,
		text.NewCol(8, data.BillToEmail, props.Text{Size: 9}),
		text.NewCol(4, fmt.Sprintf("Due %s", data.DueDate), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8)

	m.AddRows(lineHeader())
	for _, line := range data.Lines {
		m.AddRow(6,
			text.NewCol(4, line.Name, props.Text{Size: 8}),
			text.NewCol(2, line.Quantity, props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, line.UnitPrice, props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, line.VatRate, props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, line.Amount, props.Text{Size: 8, Align: align.Right}),
		)
	}

	m.AddRow(8)
	m.AddRow(6,
		col.New(8),
		text.NewCol(2, "Net", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.NetSum, props.Text{Size: 9, Align: align.Right}),
	)
	for _, vat := range data.VatLines {
		m.AddRow(6,
			col.New(8),
			text.NewCol(2, fmt.Sprintf("VAT %s%%", vat.Rate), props.Text{Size: 9}),
			text.NewCol(2, vat.VAT, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(6,
		col.New(8),
		text.NewCol(2, "Gross", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.GrossSum, props.Text{Size: 9, Align: align.Right, Style: fontstyle.Bold}),
	)

	if data.ReverseCharge {
		m.AddRow(10, text.NewCol(12,
			"Reverse charge: VAT to be accounted for by the recipient.",
			props.Text{Size: 8, Style: fontstyle.Italic},
		))
	}

	if data.QRPayload != "" {
		m.AddRow(30,
			col.New(8),
			code.NewQrCol(4, data.QRPayload, props.Rect{Center: true, Percent: 90}),
		)
	}

	return render(m)
}

func (p *MarotoProvider) GenerateReminder(ctx context.Context, data ReminderData) ([]byte, error) {
	_ = ctx
	m := newDocument()

	m.AddRow(14,
		text.NewCol(8, data.OwnerName, props.Text{Size: 14, Style: fontstyle.Bold}),
		text.NewCol(4, fmt.Sprintf("Reminder %s", data.ReminderNumber), props.Text{
			Size: 11, Align: align.Right,
		}),
	)
	m.AddRow(6,
		text.NewCol(8, data.BillToName, props.Text{Size: 9}),
		text.NewCol(4, fmt.Sprintf("Issued %s", data.IssueDate), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10, text.NewCol(12,
		fmt.Sprintf("Invoice %s was due on %s and remains unpaid.", data.InvoiceNumber, data.DueDate),
		props.Text{Size: 9},
	))
	m.AddRow(6,
		col.New(8),
		text.NewCol(2, "Outstanding", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.OutstandingSum, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(6,
		col.New(8),
		text.NewCol(2, "Dunning fee", props.Text{Size: 9}),
		text.NewCol(2, data.FeeSum, props.Text{Size: 9, Align: align.Right}),
	)

	if data.QRPayload != "" {
		m.AddRow(30,
			col.New(8),
			code.NewQrCol(4, data.QRPayload, props.Rect{Center: true, Percent: 90}),
		)
	}

	return render(m)
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func lineHeader() core.Row {
	return row.New(7).Add(
		text.NewCol(4, "Item", props.Text{Size: 8, Style: fontstyle.Bold}),
		text.NewCol(2, "Qty", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Unit", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "VAT", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
	)
}

func render(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
