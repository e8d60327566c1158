package extractor

import (
	"regexp"
	"strings"
)

// =============================================================================
// Contact Resolution
// =============================================================================
//
// When the evidence email sits in our own sent folder (or a forwarded
// thread), "from" is one of our mailboxes and the real publisher contact is
// buried in the quoted body. Patterns are tried in priority order.

var (
	quotedFromRe   = regexp.MustCompile(`(?im)^>*\s*from:\s*(?:"?[^"<\r\n]*"?\s*)?<?([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})>?`)
	wroteRe        = regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})>?[^\r\n]{0,40}wrote:`)
	angleAddrRe    = regexp.MustCompile(`<([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})>`)
	bareAddrRe     = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	noReplyLocalRe = regexp.MustCompile(`(?i)^(no-?reply|do-?not-?reply|noreply|mailer-daemon)`)
)

// isOutboundFn reports whether an address belongs to the operator.
type isOutboundFn func(address string) bool

// ResolveContact returns the true publisher contact for an email. If "from"
// is an operator mailbox the body is searched with a prioritized pattern
// order (quoted From: header, "wrote:" attribution, angle-bracket address,
// bare address), skipping operator and no-reply addresses.
func ResolveContact(from, body string, isOutbound isOutboundFn) string {
	if !isOutbound(from) {
		return bareAddress(from)
	}

	for _, candidates := range [][]string{
		captures(quotedFromRe, body),
		captures(wroteRe, body),
		captures(angleAddrRe, body),
		bareAddrRe.FindAllString(body, -1),
	} {
		for _, addr := range candidates {
			addr = strings.ToLower(addr)
			if isOutbound(addr) || isNoReply(addr) {
				continue
			}
			return addr
		}
	}
	return ""
}

func captures(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func isNoReply(addr string) bool {
	return noReplyLocalRe.MatchString(addr)
}

// bareAddress strips a "Name <addr>" header form down to the address.
func bareAddress(from string) string {
	if m := angleAddrRe.FindStringSubmatch(from); m != nil {
		return strings.ToLower(m[1])
	}
	if m := bareAddrRe.FindString(from); m != "" {
		return strings.ToLower(m)
	}
	return strings.ToLower(strings.TrimSpace(from))
}
