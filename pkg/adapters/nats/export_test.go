package nats

type Conn = conn

func NewWithConn(c Conn, subject string) *Publisher {
	return newPublisher(c, subject)
}
