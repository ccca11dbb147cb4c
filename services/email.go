package services

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"

	"enrollment-module/config"
	"enrollment-module/logger"
)

// SMTPNotifier sends enrollment emails over SMTP with a PDF receipt attached
// when one can be generated.
type SMTPNotifier struct {
	store Store
}

func NewSMTPNotifier(store Store) *SMTPNotifier {
	return &SMTPNotifier{store: store}
}

// SendEnrollmentConfirmation emails the student their enrollment details.
func (n *SMTPNotifier) SendEnrollmentConfirmation(studentID, enrollmentID int, orderID string) error {
	ctx := context.Background()
	student, err := n.store.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	enrollment, err := n.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	course, err := n.store.GetCourse(ctx, enrollment.CourseID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Your enrollment in <b>%s</b> (%s batch) is confirmed.</p>
<p>Amount paid: INR %.2f<br>Order reference: %s</p>
<p>See you in class!</p>`,
		student.Name, course.DisplayName(), enrollment.BatchType, enrollment.Payment.Amount, orderID)

	var attachments []string
	receiptPath, err := GenerateReceipt(student.Name, course.DisplayName(), orderID, enrollment.Payment.Amount)
	if err != nil {
		logger.Warn("[EMAIL] Receipt generation failed - EnrollmentID: %d: %v", enrollmentID, err)
	} else {
		attachments = append(attachments, receiptPath)
		defer os.Remove(receiptPath)
	}

	return SendEmailDirect(student.Email, "Enrollment Confirmed", body, attachments...)
}

// SendEmailDirect sends email directly via SMTP.
func SendEmailDirect(to, subject, body string, attachment ...string) error {
	logger.Info("[EMAIL] Sending - Recipient: %s, Subject: %s", to, subject)

	m := gomail.NewMessage()

	from := config.AppConfig.EmailFrom
	if from == "" {
		from = config.AppConfig.SMTPUser
	}
	if from == "" {
		return fmt.Errorf("email sender not configured (set EMAIL_FROM or SMTP_USER)")
	}

	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if len(attachment) > 0 {
		m.Attach(attachment[0])
	}

	if config.AppConfig.SMTPUser == "" || config.AppConfig.SMTPPass == "" {
		return fmt.Errorf("smtp credentials not configured (set SMTP_USER and SMTP_PASS)")
	}

	port := 587
	if v, err := strconv.Atoi(config.AppConfig.SMTPPort); err == nil {
		port = v
	}

	d := gomail.NewDialer(config.AppConfig.SMTPHost, port,
		config.AppConfig.SMTPUser, config.AppConfig.SMTPPass)

	if err := d.DialAndSend(m); err != nil {
		logger.Error("[EMAIL] Failed to send to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Info("[EMAIL] Sent to: %s", to)
	return nil
}
