//go:build !linux && !darwin

package socket

import "os"

func (s *Socket) Send(p []byte) (int, error)             { return 0, ErrPlatformNotSupported }
func (s *Socket) Recv(p []byte, waitAll bool) (int, error) { return 0, ErrPlatformNotSupported }
func (s *Socket) Shutdown(how ShutdownHow) error          { return ErrPlatformNotSupported }
func (s *Socket) SetNonblock(on bool) error               { return ErrPlatformNotSupported }

func (s *Socket) SendTo(p []byte, ep Endpoint) (int, error) {
	return 0, ErrPlatformNotSupported
}

func (s *Socket) RecvFrom(p []byte) (int, Endpoint, error) {
	return 0, Endpoint{}, ErrPlatformNotSupported
}

func (s *Socket) SendFile(f *os.File, offset int64, count int) (int, error) {
	return 0, ErrPlatformNotSupported
}

func (s *Socket) LocalEndpoint() (Endpoint, error) { return Endpoint{}, ErrPlatformNotSupported }
func (s *Socket) PeerEndpoint() (Endpoint, error)  { return Endpoint{}, ErrPlatformNotSupported }

func (s *Stack) Broadcast() (*Socket, error)           { return nil, ErrPlatformNotSupported }
func (s *Stack) Socketpair() (*Socket, *Socket, error) { return nil, nil, ErrPlatformNotSupported }
