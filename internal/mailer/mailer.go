package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/ebook-storefront/internal/contact"
	"github.com/wichananm65/ebook-storefront/internal/order"
	"github.com/wichananm65/ebook-storefront/internal/recommended"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var ErrDisabled = errors.New("mailer is not configured")

type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	FromEmail string
	FromName  string
	// CurrencySymbol prefixes formatted amounts.
	CurrencySymbol string
}

// sendFunc delivers an already rendered RFC 5322 message.
type sendFunc func(ctx context.Context, from string, to []string, msg []byte) error

// Mailer sends order confirmations to buyers and contact form submissions
// to the shop inbox.
type Mailer struct {
	cfg         Config
	send        sendFunc
	recommender Recommender
}

// Recommender picks products to suggest below an order summary.
type Recommender interface {
	ForOrder(ctx context.Context, owned []string, limit int) []recommended.Item
}

type Option func(*Mailer)

// WithRecommender adds an "explore more" section to order confirmations.
func WithRecommender(r Recommender) Option {
	return func(m *Mailer) { m.recommender = r }
}

func New(cfg Config, opts ...Option) *Mailer {
	if cfg.FromName == "" {
		cfg.FromName = "Storefront"
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "₹"
	}
	m := &Mailer{cfg: cfg}
	m.send = m.smtpSend
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mailer) enabled() bool {
	return m.cfg.Host != "" && m.cfg.User != "" && m.cfg.FromEmail != ""
}

func (m *Mailer) money(amount int64) string {
	return m.cfg.CurrencySymbol + decimal.NewFromInt(amount).StringFixed(2)
}

type orderLine struct {
	Title    string
	Quantity int
	Amount   string
}

type suggestion struct {
	Title string
	Image string
	Price string
}

type orderView struct {
	Order       order.Order
	More        []suggestion
	FirstName   string
	PlacedOn    string
	Lines       []orderLine
	Total       string
	Discount    string
	HasDiscount bool
	PaymentID   string
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, o order.Order) error {
	if !m.enabled() {
		return ErrDisabled
	}
	view := orderView{
		Order:       o,
		FirstName:   firstName(o.CustomerName),
		PlacedOn:    o.CreatedAt.Format("January 2, 2006"),
		Total:       m.money(o.TotalAmount),
		Discount:    m.money(o.Discount),
		HasDiscount: o.Discount > 0,
		PaymentID:   o.GatewayPaymentID,
	}
	if view.PaymentID == "" {
		view.PaymentID = "N/A"
	}
	owned := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		view.Lines = append(view.Lines, orderLine{
			Title:    it.Title,
			Quantity: it.Quantity,
			Amount:   m.money(it.PriceAtTime * int64(it.Quantity)),
		})
		owned = append(owned, it.ProductID)
	}
	if m.recommender != nil {
		for _, r := range m.recommender.ForOrder(ctx, owned, recommended.DefaultLimit) {
			view.More = append(view.More, suggestion{Title: r.Title, Image: r.Image, Price: m.money(r.CurrentPrice)})
		}
	}

	subject := fmt.Sprintf("Your order #%s from %s is confirmed!", o.OrderNumber, m.cfg.FromName)
	msg, err := m.compose("order_confirmation.html", view, o.CustomerEmail, subject, "")
	if err != nil {
		return err
	}
	return m.send(ctx, m.cfg.FromEmail, []string{o.CustomerEmail}, msg)
}

func (m *Mailer) SendContactNotification(ctx context.Context, msg contact.Message) error {
	if !m.enabled() {
		return ErrDisabled
	}
	subject := "New Contact Form Submission from " + msg.Name
	raw, err := m.compose("contact_notification.html", msg, m.cfg.FromEmail, subject, msg.Email)
	if err != nil {
		return err
	}
	return m.send(ctx, m.cfg.FromEmail, []string{m.cfg.FromEmail}, raw)
}

func (m *Mailer) compose(tmpl string, data any, to, subject, replyTo string) ([]byte, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", tmpl, err)
	}

	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromEmail}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	if replyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", replyTo)
	}
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// smtpSend uses implicit TLS on port 465 and STARTTLS elsewhere.
func (m *Mailer) smtpSend(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: 15 * time.Second}

	var conn net.Conn
	var err error
	if m.cfg.Port == 465 {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if m.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if err := client.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}
