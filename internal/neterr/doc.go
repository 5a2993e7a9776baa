// Package neterr classifies transport failures talking to the TV.
//
// Every network error produced by the description fetcher and the control
// session is wrapped in an *Error whose Type says what went wrong (timeout,
// refused, unreachable, closed by the peer, non-2xx HTTP status). Callers test
// for categories with the IsX predicates, which see through fmt.Errorf
// wrapping, and render user-facing text with ShortMessage and
// TroubleshootingHint.
package neterr
