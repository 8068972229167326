// Package mail builds MIME messages and delivers them over SMTP.
//
// Use cases work with Message and the Dialer/Mail interfaces. A Dialer opens one
// authenticated connection per delivery attempt; the caller closes it.
package mail
