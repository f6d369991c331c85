package config

// SMTPListenAddr returns the address the ingest SMTP server binds to.
func SMTPListenAddr() string {
	return GetEnv("SMTP_LISTEN_ADDR", ":2525")
}

// SMTPDomain returns the domain name the SMTP server advertises in its
// greeting banner.
func SMTPDomain() string {
	return GetEnv("SMTP_DOMAIN", "localhost")
}

// SMTPMaxMessageBytes returns the maximum accepted DATA size in bytes.
func SMTPMaxMessageBytes() int64 {
	n, err := parseBytes(GetEnv("SMTP_MAX_MESSAGE_SIZE", "25MB"))
	if err != nil || n <= 0 {
		return 25 << 20
	}
	return n
}

// SMTPMaxRecipients returns the maximum RCPT TO count accepted per message.
func SMTPMaxRecipients() int {
	return parseIntEnv("SMTP_MAX_RECIPIENTS", 50)
}
