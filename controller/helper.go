package controller

import (
	"encoding/base64"
	"fmt"

	"github.com/mailjet/mailjet-apiv3-go"
)

func (ctrl *controller) sendEmail(to string, subject string, body string) error {
	// when in production, send real email, else just log to console
	if ctrl.model.Config.Mode == "production" {
		return ctrl.sendRealEmail(to, subject, body)
	}
	fmt.Println("Sending email to", to, "with subject", subject, "and body", body)
	return nil
}

func (ctrl *controller) sendEmailWithAttachment(to, subject, body, filename string, attachment []byte) error {
	if ctrl.model.Config.Mode != "production" {
		fmt.Println("Sending email to", to, "with subject", subject, "and attachment", filename)
		return nil
	}
	attachments := mailjet.AttachmentsV31{
		mailjet.AttachmentV31{
			ContentType:   "application/pdf",
			Filename:      filename,
			Base64Content: base64.StdEncoding.EncodeToString(attachment),
		},
	}
	return ctrl.sendMailjet(to, subject, body, &attachments)
}

func (ctrl *controller) sendRealEmail(to string, subject string, body string) error {
	return ctrl.sendMailjet(to, subject, body, nil)
}

func (ctrl *controller) sendMailjet(to, subject, body string, attachments *mailjet.AttachmentsV31) error {
	mj := mailjet.NewMailjetClient(ctrl.model.Config.MailAPIKey, ctrl.model.Config.MailSecret)

	messagesInfo := []mailjet.InfoMessagesV31{
		{
			From: &mailjet.RecipientV31{
				Email: "app@motorbill.app",
				Name:  "motorbill",
			},
			To: &mailjet.RecipientsV31{
				mailjet.RecipientV31{
					Email: to,
				},
			},
			Subject:     subject,
			TextPart:    body,
			Attachments: attachments,
		},
	}

	messages := mailjet.MessagesV31{Info: messagesInfo}
	if _, err := mj.SendMailV31(&messages); err != nil {
		return ErrInvalid(err, "error while sending the email")
	}
	return nil
}
