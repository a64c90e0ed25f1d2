package notify

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/phpdave11/gofpdf"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

// ReceiptPDF renders a one-page ticket for the receipt. It returns the
// document and a file name for the attachment.
func ReceiptPDF(r domain.Receipt) ([]byte, string, error) {
	v := view(r)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, Company)
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Booking Receipt - APPROVED")
	pdf.Ln(12)

	section := func(title string, rows [][2]string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, title)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		for _, row := range rows {
			pdf.CellFormat(55, 6, row[0], "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, row[1], "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	section("Passenger", [][2]string{
		{"Full Name", r.CustomerName},
		{"Class/Level", r.Class},
		{"Email", r.CustomerEmail},
		{"Phone", r.Phone},
	})
	section("Journey", [][2]string{
		{"Booking ID", v.ShortID},
		{"Pick-up Point", r.PickupPoint},
		{"Destination", r.Destination},
		{"Bus Type", r.BusType},
		{"Seat Number", fmt.Sprintf("Seat %d", r.SeatNumber)},
		{"Departure Date", v.Departure},
	})
	section("Emergency Contact", [][2]string{
		{"Contact Person", r.ContactPersonName},
		{"Contact Phone", r.ContactPersonPhone},
	})
	section("Payment", [][2]string{
		{"Booking Date", v.BookedAt},
		{"Payment Reference", r.PaymentReference},
		{"Amount Paid", v.Amount},
	})

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Show this receipt or the booking ID when boarding. Valid for one passenger and one seat.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", errors.Wrap(err, "render pdf receipt")
	}
	return buf.Bytes(), fmt.Sprintf("receipt-%s.pdf", v.ShortID), nil
}
