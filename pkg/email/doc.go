// Package email delivers transactional messages, in practice the one-time
// sign-in links issued by the email-link flow.
//
// EmailSender is implemented by a Postmark client for deployed environments
// and by DevSender, a local outbox that stores each message as HTML and
// indexes it, with the sign-in link it carries, in outbox.jsonl. NewFromConfig picks between them based on whether Postmark tokens
// are configured.
//
//	sender, err := email.NewFromConfig(cfg, log)
//	if err != nil {
//	    return err
//	}
//	body, err := templates.Render(ctx, templates.SignInLink(addr, link, time.Hour))
//	if err != nil {
//	    return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   addr,
//	    Subject:  templates.SignInLinkSubject,
//	    BodyHTML: body,
//	    Tag:      "signin-link",
//	})
//
// Errors wrap ErrInvalidConfig, ErrInvalidParams or ErrFailedToSendEmail.
package email
