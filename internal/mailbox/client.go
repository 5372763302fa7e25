package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"hireflow-engine/internal/domain"
)

// Session is one authenticated IMAP connection with INBOX selected.
// It lives for a single account check cycle.
type Session struct {
	c       *imapclient.Client
	account domain.MailAccount
}

// Dialer opens sessions for accounts. The controller holds one value and
// tests swap it for a fake.
type Dialer struct{}

// Dial connects over TLS, logs in and selects INBOX. Any failure here is a
// connectivity error for the whole account check.
func (Dialer) Dial(ctx context.Context, acct domain.MailAccount, password string) (*Session, error) {
	s, err := DialAndLogin(ctx, acct.Addr(), acct.Username, password, nil)
	if err != nil {
		return nil, &domain.ConnectivityError{AccountID: acct.ID, Host: acct.Addr(), Err: err}
	}
	s.account = acct
	if err := s.SelectInbox(); err != nil {
		_ = s.Close()
		return nil, &domain.ConnectivityError{AccountID: acct.ID, Host: acct.Addr(), Err: err}
	}
	return s, nil
}

// DialAndLogin connects over TLS and logs in.
func DialAndLogin(ctx context.Context, addr, username, password string, tlsCfg *tls.Config) (*Session, error) {
	if addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: tlsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	return &Session{c: c}, nil
}

// SelectInbox selects INBOX read-only; the automation never flags messages,
// dedup against the datastore decides what is new.
func (s *Session) SelectInbox() error {
	if s == nil || s.c == nil {
		return errors.New("imap client is nil")
	}
	_, err := s.c.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return fmt.Errorf("imap select inbox: %w", err)
	}
	return nil
}

// Close logs out then closes the connection.
func (s *Session) Close() error {
	if s == nil || s.c == nil {
		return nil
	}
	err := s.c.Logout().Wait()
	_ = s.c.Close()
	return err
}
