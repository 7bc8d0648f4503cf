// Package notify delivers booking and session alerts by email and, via
// the carriers' email-to-SMS gateways, by text message. Delivery is
// fire-and-forget: failures are logged and never affect the run that
// triggered them.
package notify

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/example/court-scheduler/internal/config"
)

// carrierGateways maps a carrier name to its email-to-SMS domain. A
// message mailed to <number>@<domain> arrives as a text.
var carrierGateways = map[string]string{
	"att":        "txt.att.net",
	"verizon":    "vtext.com",
	"tmobile":    "tmomail.net",
	"sprint":     "messaging.sprintpcs.com",
	"uscellular": "email.uscc.net",
	"cricket":    "sms.cricketwireless.net",
}

// SMSGateway builds the email-to-SMS address for a phone number. The
// number must be digits only.
func SMSGateway(number, carrier string) (string, error) {
	domain, ok := carrierGateways[strings.ToLower(strings.TrimSpace(carrier))]
	if !ok {
		known := make([]string, 0, len(carrierGateways))
		for c := range carrierGateways {
			known = append(known, c)
		}
		return "", fmt.Errorf("unknown carrier %q (supported: %s)", carrier, strings.Join(known, ", "))
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return "", fmt.Errorf("empty phone number")
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number %q must be digits only", number)
		}
	}
	return number + "@" + domain, nil
}

// BookingDetails is the slice of a confirmed reservation a notification
// carries.
type BookingDetails struct {
	Court string
	Date  string
	Time  string
}

// Notifier sends the outbound alerts. Missing configuration disables
// the corresponding channel silently; a Notifier with nothing configured
// is a no-op.
type Notifier struct {
	cfg config.Notify
	log zerolog.Logger

	now  func() time.Time
	send func(from, to, subject, body string) error
}

func New(cfg config.Notify, log zerolog.Logger) *Notifier {
	n := &Notifier{
		cfg: cfg,
		log: log.With().Str("component", "notify").Logger(),
		now: time.Now,
	}
	n.send = n.sendgridSend
	return n
}

// BookingResult reports the end of a booking run: the reservation on
// success, the error and a recent log excerpt otherwise.
func (n *Notifier) BookingResult(success bool, details *BookingDetails, logLines []string, errMsg string) {
	var subject string
	var b strings.Builder

	if success && details != nil {
		subject = fmt.Sprintf("Court booked: %s %s at %s", details.Court, details.Date, details.Time)
		fmt.Fprintf(&b, "Booking confirmed.\n\n")
		fmt.Fprintf(&b, "Court: %s\nDate:  %s\nTime:  %s\n", details.Court, details.Date, details.Time)
	} else {
		subject = "Court booking: no reservation made"
		fmt.Fprintf(&b, "No booking was made.\n")
		if errMsg != "" {
			fmt.Fprintf(&b, "\nError: %s\n", errMsg)
		}
	}
	fmt.Fprintf(&b, "\nCompleted at %s\n", n.now().Format("2006-01-02 15:04:05"))

	if len(logLines) > 0 {
		fmt.Fprintf(&b, "\nRecent log:\n")
		for _, line := range logLines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	n.email(subject, b.String())

	if success && details != nil {
		n.sms(fmt.Sprintf("Booked %s on %s at %s", details.Court, details.Date, details.Time))
	} else {
		n.sms("Court booking failed, check the logs")
	}
}

// AuthStatus reports a change in the persisted session's health, so an
// expired login gets noticed before the next scheduled run needs it.
func (n *Notifier) AuthStatus(authenticated bool, details string) {
	var subject string
	var b strings.Builder

	if authenticated {
		subject = "Court scheduler: session active"
		fmt.Fprintf(&b, "The saved session is signed in and working.\n")
	} else {
		subject = "Court scheduler: session expired"
		fmt.Fprintf(&b, "The saved session is no longer signed in.\n")
		fmt.Fprintf(&b, "Run `courtsched auth` to sign in again before the next scheduled booking.\n")
	}
	fmt.Fprintf(&b, "\nChecked at %s\n", n.now().Format("2006-01-02 15:04:05"))
	if details != "" {
		fmt.Fprintf(&b, "\n%s\n", details)
	}

	n.email(subject, b.String())
	if authenticated {
		n.sms("Court scheduler session OK")
	} else {
		n.sms("Court scheduler session EXPIRED, re-auth needed")
	}
}

func (n *Notifier) email(subject, body string) {
	if n.cfg.EmailFrom == "" || n.cfg.EmailTo == "" {
		n.log.Debug().Msg("email notification not configured, skipping")
		return
	}
	if os.Getenv("SENDGRID_API_KEY") == "" {
		n.log.Warn().Msg("SENDGRID_API_KEY not set, skipping email notification")
		return
	}
	if err := n.send(n.cfg.EmailFrom, n.cfg.EmailTo, subject, body); err != nil {
		n.log.Warn().Err(err).Str("to", n.cfg.EmailTo).Msg("email notification failed")
		return
	}
	n.log.Info().Str("to", n.cfg.EmailTo).Str("subject", subject).Msg("email notification sent")
}

func (n *Notifier) sms(message string) {
	if n.cfg.SMSNumber == "" || n.cfg.SMSCarrier == "" {
		return
	}
	if os.Getenv("SENDGRID_API_KEY") == "" || n.cfg.EmailFrom == "" {
		return
	}
	to, err := SMSGateway(n.cfg.SMSNumber, n.cfg.SMSCarrier)
	if err != nil {
		n.log.Warn().Err(err).Msg("sms gateway address invalid")
		return
	}
	if err := n.send(n.cfg.EmailFrom, to, "Court scheduler", message); err != nil {
		n.log.Warn().Err(err).Msg("sms notification failed")
		return
	}
	n.log.Info().Str("to", to).Msg("sms notification sent")
}

func (n *Notifier) sendgridSend(fromAddr, toAddr, subject, body string) error {
	from := mail.NewEmail("Court Scheduler", fromAddr)
	to := mail.NewEmail("", toAddr)
	message := mail.NewSingleEmail(from, subject, to, body, body)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
