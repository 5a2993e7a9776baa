// Package session maintains the control connection to the TV.
//
// A Session owns one TCP connection on the control port (4123 by default).
// Every message, whether a key press from the caller or the periodic "nop"
// keep-alive, is sent as an exchange: one write followed by one read of the
// TV's acknowledgement. Exchanges are serialized by a single mutex so the
// keep-alive goroutine can never interleave with a key press.
//
// Usage:
//
//	sess, err := session.Open(ctx, dev.IP, dev.Name, nil)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	if err := sess.SendKey("TR_KEY_UP"); err != nil {
//	    return err
//	}
//
// The keep-alive does not reconnect. When it fails the task stops, the error
// is passed to Config.OnKeepAliveError and is available from Session.Err.
package session
