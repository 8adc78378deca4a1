package email

import (
	"context"
	"errors"
	"net/textproto"
	"regexp"

	"gopkg.in/gomail.v2"

	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
	"github.com/jwalitptl/attend-api/pkg/logger"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// Client delivers notifications over SMTP. The dispatch channel id is the
// recipient address.
type Client struct {
	cfg    Config
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Subject == "" {
		cfg.Subject = "Attendance notification"
	}
	return &Client{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: log,
	}
}

// Send delivers one message. A 5xx SMTP reply (rejected mailbox, policy
// refusal) is permanent; 4xx replies, connection and dial failures are
// transient and left to the dispatcher's retry budget.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Transient(err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", c.cfg.Subject)
	m.SetBody("text/plain", body)

	if err := c.dialer.DialAndSend(m); err != nil {
		return classify(err)
	}
	return nil
}

// smtpPermanent matches a 5xx reply code at the start of an SMTP error
// message; gomail flattens the protocol error into text on the send path,
// so the typed check alone is not enough.
var smtpPermanent = regexp.MustCompile(`(^|[:\s])5\d\d[\s-]`)

func classify(err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		if proto.Code >= 500 {
			return apperrors.Permanent(err)
		}
		return apperrors.Transient(err)
	}
	if smtpPermanent.MatchString(err.Error()) {
		return apperrors.Permanent(err)
	}
	return apperrors.Transient(err)
}
