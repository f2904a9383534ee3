package mailer

import (
	"fmt"
	"log"
	"os"
	"strconv"

	gomail "github.com/wneessen/go-mail"
)

type SendMailInput struct {
	From     string
	FromName string
	To       string
	Subject  string
	Body     string
}

type Sender interface {
	Send(input *SendMailInput) error
}

var sender Sender

func GetSender() Sender {
	if sender != nil {
		return sender
	}
	sender = &SMTPSender{}
	return sender
}

// NewSender Replace mail sender with custom implementation
func NewSender(s Sender) Sender {
	sender = s
	return sender
}

type SMTPSender struct{}

func (s *SMTPSender) Send(input *SendMailInput) error {
	host := os.Getenv("SMTP_HOST")
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	msg := gomail.NewMsg()
	if err := msg.FromFormat(input.FromName, input.From); err != nil {
		return err
	}
	if err := msg.To(input.To); err != nil {
		return err
	}
	msg.Subject(input.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, input.Body)

	client, err := gomail.NewClient(host,
		gomail.WithPort(port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(os.Getenv("SMTP_USER")),
		gomail.WithPassword(os.Getenv("SMTP_PASSWORD")),
	)
	if err != nil {
		return fmt.Errorf("error creating mail client: %w", err)
	}
	return client.DialAndSend(msg)
}

// NotifyTicketsIssued sends the buyer a note that their tickets were
// generated. Failures are logged, never propagated; mail is not part
// of the order transaction.
func NotifyTicketsIssued(email, saleName string, count int) {
	from := os.Getenv("MAIL_FROM")
	if from == "" || email == "" {
		return
	}
	input := &SendMailInput{
		From:     from,
		FromName: os.Getenv("MAIL_FROM_NAME"),
		To:       email,
		Subject:  fmt.Sprintf("Your tickets for %s", saleName),
		Body:     fmt.Sprintf("Your payment was received. %d ticket(s) for %s are now available in your account.", count, saleName),
	}
	if err := GetSender().Send(input); err != nil {
		log.Printf("Error sending tickets mail to %s: %s\n", email, err.Error())
	}
}
