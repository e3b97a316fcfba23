package util

import (
	"net/mail"
	"strings"
)

// Sender is an email sender split into display name and address.
type Sender struct {
	Name string
	// Address is lowercased with any +alias removed from the local part.
	Address string
}

// ParseSender parses an RFC 5322 From value such as
// "Name <user+alias@Example.COM>". For a list of addresses the first valid
// one wins. Both fields are empty when nothing parses.
func ParseSender(header string) Sender {
	header = strings.TrimSpace(header)
	if header == "" {
		return Sender{}
	}
	addr, err := mail.ParseAddress(header)
	if err != nil {
		list, lerr := mail.ParseAddressList(header)
		if lerr != nil || len(list) == 0 {
			addr = firstValid(strings.Split(header, ","))
		} else {
			addr = list[0]
		}
	}
	if addr == nil {
		return Sender{}
	}
	return Sender{Name: strings.TrimSpace(addr.Name), Address: canonicalAddress(addr.Address)}
}

func firstValid(parts []string) *mail.Address {
	for _, p := range parts {
		if a, err := mail.ParseAddress(strings.TrimSpace(p)); err == nil {
			return a
		}
	}
	return nil
}

// canonicalAddress keeps dots in the local part; only some providers ignore them.
func canonicalAddress(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if plus := strings.IndexByte(local, '+'); plus > -1 {
		local = local[:plus]
	}
	return local + "@" + domain
}

// Display is the name shown in menus: the header name, else the address
// local part title-cased on dots ("john.smith" becomes "John Smith").
func (s Sender) Display() string {
	if s.Name != "" {
		return s.Name
	}
	at := strings.IndexByte(s.Address, '@')
	if at <= 0 {
		return s.Address
	}
	parts := strings.Split(s.Address[:at], ".")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
