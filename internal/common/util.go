package common

// WipeByteArray zeroes b in place. Passwords read from the terminal go
// through it once they have been handed to the transport.
func WipeByteArray(b []byte) {
	clear(b)
}
