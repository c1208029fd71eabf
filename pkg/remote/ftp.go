package remote

import (
	"fmt"
	"io"
	"net/textproto"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/ftpmirror/pkg/errors"
)

// Config describes how to reach the remote server.
type Config struct {
	// Host is the server address, with an optional port (21 by default).
	Host string

	User     string
	Password string

	// RemoteDir, when set, is changed into right after login. All remote
	// paths are then relative to it.
	RemoteDir string

	// Timeout bounds the control-connection dial. The zero value means 30
	// seconds.
	Timeout time.Duration
}

const defaultTimeout = 30 * time.Second

// Dial establishes an FTP session: connect, login, binary transfer mode,
// and optionally a change into the remote root. Any step failing is fatal
// to the run, since nothing downstream can proceed without a session.
func Dial(cfg Config) (Client, error) {
	addr := cfg.Host
	if !strings.Contains(addr, ":") {
		addr += ":21"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, errors.WithContext(err, fmt.Sprintf("connect to %q", addr))
	}

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		conn.Quit()
		return nil, errors.WithContext(err, fmt.Sprintf("log in as %q", cfg.User))
	}

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		conn.Quit()
		return nil, errors.WithContext(err, "set binary transfer mode")
	}

	if cfg.RemoteDir != "" {
		if err := conn.ChangeDir(cfg.RemoteDir); err != nil {
			conn.Quit()
			return nil, errors.WithContext(err,
				fmt.Sprintf("change to remote root %q", cfg.RemoteDir))
		}
	}

	log.WithField("host", addr).Debug("Established FTP session")
	return &session{conn: conn}, nil
}

type session struct {
	conn *ftp.ServerConn
}

// ListRecursive fetches the raw recursive listing. The flags are passed
// through NLST; ls-backed servers answer with the long recursive format
// that ParseListing consumes.
func (s *session) ListRecursive() (string, error) {
	lines, err := s.conn.NameList("-lRa")
	if err != nil {
		return "", errors.WithContext(err, "list remote files")
	}
	return strings.Join(lines, "\n"), nil
}

func (s *session) Put(remotePath string, r io.Reader) error {
	return s.conn.Stor(remotePath, r)
}

func (s *session) Delete(remotePath string) error {
	return s.conn.Delete(remotePath)
}

// MkdirAll creates each path segment in turn. Servers answer 550 for a
// directory that already exists, which is fine: creating a directory
// implies its parents.
func (s *session) MkdirAll(dir string) error {
	segments := strings.Split(dir, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		if err := s.conn.MakeDir(prefix); err != nil && !isStatus(err, ftp.StatusFileUnavailable) {
			return errors.WithContext(err, fmt.Sprintf("create directory %q", prefix))
		}
	}
	return nil
}

func (s *session) Rmdir(dir string) error {
	return s.conn.RemoveDir(dir)
}

func (s *session) Quit() error {
	return s.conn.Quit()
}

// IsNotFound reports whether err is the server telling us the file isn't
// there (550). Deleting an already-absent file counts as success.
func IsNotFound(err error) bool {
	return isStatus(errors.RootCause(err), ftp.StatusFileUnavailable)
}

func isStatus(err error, code int) bool {
	protoErr, ok := err.(*textproto.Error)
	return ok && protoErr.Code == code
}
