// Package log builds the slog loggers used by brokerscan.
//
// Discovery logs mention the person being searched, so every logger returned
// by NewLogger is wrapped in a SecureHandler. It masks:
//   - credentials: cookies, authorization headers, proxy passwords, tokens
//   - personal data keys: phone, address, email, dob and similar
//   - values shaped like an e-mail address, a phone number or a bearer token
//
// The subject's name and the broker URLs stay readable so that a verbose log
// can still be used to debug a matcher.
//
//	logger := log.NewLogger(os.Stderr, verbose, log.FormatText)
//	slog.SetDefault(logger)
package log
