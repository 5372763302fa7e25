package domain

import (
	"fmt"
	"strings"
	"time"
)

// MailAccount is a mailbox the automation polls for job-application emails.
// Counters are mutated by the controller after every check cycle.
type MailAccount struct {
	ID                string
	Name              string
	Provider          string // gmail/outlook/imap
	Host              string
	Port              int
	Username          string
	EncryptedPassword string // secrets.Encrypt output, never plaintext
	AutomationEnabled bool
	Active            bool

	LastChecked    time.Time
	TotalProcessed int64
	TotalImported  int64
	LastError      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Eligible reports whether the automation should poll this account.
func (a MailAccount) Eligible() bool {
	return a.AutomationEnabled && a.Active
}

// Addr returns host:port, defaulting to the IMAPS port.
func (a MailAccount) Addr() string {
	host := strings.TrimSpace(a.Host)
	if strings.Contains(host, ":") {
		return host
	}
	port := a.Port
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", host, port)
}
