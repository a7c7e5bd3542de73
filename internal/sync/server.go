package sync

import (
	"bufio"
	"log"
	"net"
	"sync"
)

// Server accepts raw TCP listeners that want the event stream without a
// websocket stack (scripts, `nc`).
type Server struct {
	Addr string
	Hub  *Hub

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	log.Printf("[tcp-sync] listening on %s", s.Addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}

		s.Hub.AttachTCP(conn)
		log.Printf("[tcp-sync] listener connected: %s", conn.RemoteAddr())

		go func(c net.Conn) {
			defer func() {
				s.Hub.DetachTCP(c)
				log.Printf("[tcp-sync] listener disconnected: %s", c.RemoteAddr())
			}()

			// keep the connection alive; incoming lines are ignored
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
