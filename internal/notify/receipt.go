// Package notify renders and delivers booking receipts.
package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

const Company = "Khompatek Transport Service"

// Rendered is a receipt ready to hand to a Sender.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type receiptView struct {
	domain.Receipt
	ShortID     string
	Amount      string
	Departure   string
	BookedAt    string
	Company     string
	Year        int
	ContactLine string
}

func Subject(r domain.Receipt) string {
	return fmt.Sprintf("Booking Confirmed & Approved - Seat %d | %s → %s", r.SeatNumber, r.PickupPoint, r.Destination)
}

// FormatAmount prints pesewas as cedis, e.g. "GHS 40.00".
func FormatAmount(m domain.Money) string {
	return fmt.Sprintf("GHS %d.%02d", int64(m)/100, int64(m)%100)
}

func ShortID(r domain.Receipt) string {
	return strings.ToUpper(r.BookingID.String()[:8])
}

func departure(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

func view(r domain.Receipt) receiptView {
	return receiptView{
		Receipt:     r,
		ShortID:     ShortID(r),
		Amount:      FormatAmount(r.Amount),
		Departure:   departure(r.DepartureDate),
		BookedAt:    r.BookingDate.Format("January 2, 2006 15:04"),
		Company:     Company,
		Year:        r.BookingDate.Year(),
		ContactLine: "+233 243 762 748",
	}
}

// Render builds the subject and both bodies of a receipt email.
func Render(r domain.Receipt) (Rendered, error) {
	v := view(r)
	var html, text bytes.Buffer
	if err := htmlReceipt.Execute(&html, v); err != nil {
		return Rendered{}, errors.Wrap(err, "render html receipt")
	}
	if err := textReceipt.Execute(&text, v); err != nil {
		return Rendered{}, errors.Wrap(err, "render text receipt")
	}
	return Rendered{Subject: Subject(r), HTML: html.String(), Text: text.String()}, nil
}

var htmlReceipt = htmltemplate.Must(htmltemplate.New("receipt").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Booking Confirmation - {{.Company}}</title>
<style>
body { font-family: 'Segoe UI', Tahoma, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background: #f8fafc; }
.header { background: #2563eb; color: #fff; padding: 32px; text-align: center; }
.badge { background: #059669; color: #fff; padding: 12px 24px; border-radius: 24px; display: inline-block; font-weight: bold; }
.section { margin: 20px 0; }
.section h3 { border-bottom: 2px solid #e2e8f0; padding-bottom: 4px; }
.row { display: flex; justify-content: space-between; padding: 6px 0; }
.ref { font-family: 'Courier New', monospace; background: #f1f5f9; padding: 2px 6px; }
.amount { font-size: 20px; font-weight: bold; color: #059669; }
</style>
</head>
<body>
<div class="header"><h1>{{.Company}}</h1><p>Your trusted travel partner</p></div>
<div class="content">
<div class="badge">Payment Confirmed &amp; Booking Approved</div>
<p>Dear <strong>{{.CustomerName}}</strong>,</p>
<p>Your payment has been processed and your booking has been <strong>approved</strong>.</p>
<div class="section"><h3>Passenger Information</h3>
<div class="row"><span>Full Name:</span><span>{{.CustomerName}}</span></div>
<div class="row"><span>Class/Level:</span><span>{{.Class}}</span></div>
<div class="row"><span>Email:</span><span>{{.CustomerEmail}}</span></div>
<div class="row"><span>Phone:</span><span>{{.Phone}}</span></div>
</div>
<div class="section"><h3>Journey Details</h3>
<div class="row"><span>Booking ID:</span><span class="ref">{{.ShortID}}</span></div>
<div class="row"><span>Pick-up Point:</span><span>{{.PickupPoint}}</span></div>
<div class="row"><span>Destination:</span><span>{{.Destination}}</span></div>
<div class="row"><span>Bus Type:</span><span>{{.BusType}}</span></div>
<div class="row"><span>Seat Number:</span><span><strong>Seat {{.SeatNumber}}</strong></span></div>
<div class="row"><span>Departure Date:</span><span>{{.Departure}}</span></div>
<div class="row"><span>Referral:</span><span>{{.Referral}}</span></div>
</div>
<div class="section"><h3>Emergency Contact</h3>
<div class="row"><span>Contact Person:</span><span>{{.ContactPersonName}}</span></div>
<div class="row"><span>Contact Phone:</span><span>{{.ContactPersonPhone}}</span></div>
</div>
<div class="section"><h3>Payment Information</h3>
<div class="row"><span>Booking Date:</span><span>{{.BookedAt}}</span></div>
<div class="row"><span>Payment Reference:</span><span class="ref">{{.PaymentReference}}</span></div>
<div class="row"><span>Amount Paid:</span><span class="amount">{{.Amount}}</span></div>
<div class="row"><span>Payment Status:</span><span>COMPLETED</span></div>
<div class="row"><span>Booking Status:</span><span>APPROVED</span></div>
</div>
<p>Show this email or booking ID <strong>{{.ShortID}}</strong> when boarding. Arrive 15 minutes early at your pick-up point and bring a valid ID.</p>
</div>
<div class="footer"><p>Phone/WhatsApp: {{.ContactLine}}</p><p>&copy; {{.Year}} {{.Company}}. All rights reserved.</p></div>
</body>
</html>
`))

var textReceipt = texttemplate.Must(texttemplate.New("receipt").Parse(`{{.Company}} - BOOKING CONFIRMATION

Dear {{.CustomerName}},

Your payment has been processed and your booking has been APPROVED.

BOOKING DETAILS:
- Booking ID: {{.ShortID}}
- Passenger: {{.CustomerName}}
- Class: {{.Class}}
- Email: {{.CustomerEmail}}
- Phone: {{.Phone}}

JOURNEY INFORMATION:
- From: {{.PickupPoint}}
- To: {{.Destination}}
- Seat Number: {{.SeatNumber}}
- Departure Date: {{.Departure}}
- Bus Type: {{.BusType}}

EMERGENCY CONTACT:
- Name: {{.ContactPersonName}}
- Phone: {{.ContactPersonPhone}}

PAYMENT DETAILS:
- Amount Paid: {{.Amount}}
- Payment Reference: {{.PaymentReference}}
- Payment Status: COMPLETED
- Booking Status: APPROVED

Arrive at the pickup point 15 minutes early and bring a valid ID.
Contact us for any changes: {{.ContactLine}}
`))
