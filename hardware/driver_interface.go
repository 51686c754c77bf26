package hardware

// Transactor performs one request/response exchange with the vendor
// control method. Implementations decide how sessions are owned; callers
// only see the raw signed reply and are responsible for masking it.
type Transactor interface {
	Transact(cmd Command) (int64, error)
}

// Read performs a single register read.
func Read(t Transactor, addr RegisterAddress) (int64, error) {
	return t.Transact(ReadCommand(addr))
}

// Write stores data into addr. The reply is returned unchanged so callers
// can log it.
func Write(t Transactor, addr RegisterAddress, data byte) (int64, error) {
	return t.Transact(WriteCommand(addr, data))
}

// Session is one open management connection. It is bound to the OS thread
// that opened it and must be used and closed on that same thread.
type Session interface {
	// Call invokes the control method with the decimal command payload and
	// returns the textual reply.
	Call(payload string) (string, error)
	Close()
}

// SessionOpener opens a Session on the calling OS thread.
type SessionOpener func() (Session, error)
