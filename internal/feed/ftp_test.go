package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/config"
)

// ftpServer speaks just enough FTP for one passive-mode upload per session.
type ftpServer struct {
	ln       net.Listener
	rejectPW bool

	mu       sync.Mutex
	user     string
	password string
	stored   map[string][]byte
	done     chan struct{}
}

func newFTPServer(t *testing.T, rejectPW bool) *ftpServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &ftpServer{ln: ln, rejectPW: rejectPW, stored: make(map[string][]byte), done: make(chan struct{})}
	t.Cleanup(func() {
		_ = ln.Close()
		<-s.done
	})
	go s.serve()
	return s
}

func (s *ftpServer) addr() string { return s.ln.Addr().String() }

func (s *ftpServer) file(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.stored[path]
	return b, ok
}

func (s *ftpServer) serve() {
	defer close(s.done)
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.session(conn)
	}
}

func (s *ftpServer) session(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	tp := textproto.NewConn(conn)
	reply := func(format string, args ...any) { _ = tp.PrintfLine(format, args...) }
	reply("220 ready")

	var data net.Listener
	defer func() {
		if data != nil {
			_ = data.Close()
		}
	}()

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch strings.ToUpper(cmd) {
		case "USER":
			s.mu.Lock()
			s.user = arg
			s.mu.Unlock()
			reply("331 password required")
		case "PASS":
			if s.rejectPW {
				reply("530 login incorrect")
				continue
			}
			s.mu.Lock()
			s.password = arg
			s.mu.Unlock()
			reply("230 logged in")
		case "TYPE":
			reply("200 type set")
		case "EPSV":
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				reply("425 cannot open data connection")
				continue
			}
			reply("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "STOR":
			if data == nil {
				reply("425 use EPSV first")
				continue
			}
			reply("150 ok to send data")
			dc, err := data.Accept()
			if err != nil {
				return
			}
			body, _ := io.ReadAll(dc)
			_ = dc.Close()
			s.mu.Lock()
			s.stored[arg] = body
			s.mu.Unlock()
			reply("226 transfer complete")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 %s not implemented", cmd)
		}
	}
}

func TestFTPPublisherUploads(t *testing.T) {
	srv := newFTPServer(t, false)
	p := &FTPPublisher{cfg: config.FTPConfig{Host: srv.addr(), User: "feeds", Password: "secret", Timeout: 2 * time.Second}}

	require.NoError(t, p.Publish(context.Background(), "/feeds/favorites.xml", []byte("<rss/>")))

	body, ok := srv.file("/feeds/favorites.xml")
	require.True(t, ok)
	assert.Equal(t, "<rss/>", string(body))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "feeds", srv.user)
	assert.Equal(t, "secret", srv.password)
}

func TestFTPPublisherLoginRejected(t *testing.T) {
	srv := newFTPServer(t, true)
	p := &FTPPublisher{cfg: config.FTPConfig{Host: srv.addr(), User: "feeds", Password: "wrong", Timeout: 2 * time.Second}}

	err := p.Publish(context.Background(), "/feeds/favorites.xml", []byte("<rss/>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to log in to ftp")
	_, ok := srv.file("/feeds/favorites.xml")
	assert.False(t, ok)
}

func TestFTPPublisherDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := &FTPPublisher{cfg: config.FTPConfig{Host: addr, Timeout: time.Second}}
	err = p.Publish(context.Background(), "/feeds/favorites.xml", []byte("<rss/>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("failed to connect to ftp %s", addr))

	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
}
