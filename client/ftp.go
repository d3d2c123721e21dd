package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/yeti47/mocap/common"
)

const defaultFTPPort = "21"

// FTPRemoteStore implements RemoteStore over FTP.
// It is not safe for concurrent use; callers hold one store per worker.
type FTPRemoteStore struct {
	host     string
	user     string
	password string
	workDir  string
	timeout  time.Duration
	logger   common.Logger

	conn *ftp.ServerConn
}

// NewFTPRemoteStore creates an unconnected FTP store. workDir is created if missing and entered on Connect.
func NewFTPRemoteStore(host, user, password, workDir string, timeout time.Duration, logger common.Logger) *FTPRemoteStore {
	if logger == nil {
		logger = common.NopLogger
	}
	return &FTPRemoteStore{
		host:     host,
		user:     user,
		password: password,
		workDir:  workDir,
		timeout:  timeout,
		logger:   logger,
	}
}

// FTPStoreFactory returns a factory creating stores with the same settings
func FTPStoreFactory(host, user, password, workDir string, timeout time.Duration, logger common.Logger) StoreFactory {
	return func() RemoteStore {
		return NewFTPRemoteStore(host, user, password, workDir, timeout, logger)
	}
}

func (s *FTPRemoteStore) address() string {
	if _, _, err := net.SplitHostPort(s.host); err == nil {
		return s.host
	}
	return net.JoinHostPort(s.host, defaultFTPPort)
}

func (s *FTPRemoteStore) Connect(ctx context.Context) error {
	options := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if s.timeout > 0 {
		options = append(options, ftp.DialWithTimeout(s.timeout))
	}

	conn, err := ftp.Dial(s.address(), options...)
	if err != nil {
		return NewRecoverableRemoteError("connect", s.host, err)
	}

	if err := conn.Login(s.user, s.password); err != nil {
		conn.Quit()
		return classify("login", s.user, err)
	}
	s.conn = conn

	if s.workDir != "" {
		if err := s.MakeDir(s.workDir); err != nil && !errors.Is(err, ErrAlreadyExists) {
			s.logger.Warn("Failed to create remote working directory", "dir", s.workDir, "error", err)
		}
		if err := s.ChangeDir(s.workDir); err != nil {
			s.Quit()
			return err
		}
	}

	s.logger.Debug("Connected to FTP server", "host", s.host, "workDir", s.workDir)
	return nil
}

func (s *FTPRemoteStore) Quit() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	if err != nil {
		s.logger.Warn("FTP quit failed", "error", err)
		return classify("quit", "", err)
	}
	return nil
}

func (s *FTPRemoteStore) CurrentDir() (string, error) {
	if s.conn == nil {
		return "", ErrNotConnected
	}
	dir, err := s.conn.CurrentDir()
	if err != nil {
		return "", classify("pwd", "", err)
	}
	return dir, nil
}

func (s *FTPRemoteStore) ChangeDir(path string) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.ChangeDir(path); err != nil {
		return classify("cwd", path, err)
	}
	return nil
}

func (s *FTPRemoteStore) MakeDir(path string) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.MakeDir(path); err != nil {
		// servers answer 550 for an existing directory
		if code, ok := replyCode(err); ok && code == ftp.StatusFileUnavailable {
			return NewNonRecoverableRemoteError("mkd", path, ErrAlreadyExists)
		}
		return classify("mkd", path, err)
	}
	return nil
}

func (s *FTPRemoteStore) List(path string) ([]Entry, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	raw, err := s.conn.List(path)
	if err != nil {
		return nil, classify("list", path, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, Entry{
			Name:       e.Name,
			Kind:       entryKind(e.Type),
			ModifiedAt: e.Time,
			Size:       e.Size,
		})
	}
	return entries, nil
}

func (s *FTPRemoteStore) Store(name string, r io.Reader) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.Stor(name, r); err != nil {
		return classify("stor", name, err)
	}
	return nil
}

func (s *FTPRemoteStore) Retrieve(path string, w io.Writer) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	resp, err := s.conn.Retr(path)
	if err != nil {
		return classify("retr", path, err)
	}
	defer resp.Close()

	if _, err := io.Copy(w, resp); err != nil {
		return NewRecoverableRemoteError("retr", path, err)
	}
	return nil
}

func (s *FTPRemoteStore) Delete(path string) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.Delete(path); err != nil {
		return classify("dele", path, err)
	}
	return nil
}

func entryKind(t ftp.EntryType) EntryKind {
	switch t {
	case ftp.EntryTypeFile:
		return EntryFile
	case ftp.EntryTypeFolder:
		return EntryDir
	default:
		return EntryOther
	}
}

func replyCode(err error) (int, bool) {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code, true
	}
	return 0, false
}

// classify maps an FTP failure onto the RemoteError taxonomy.
// 550 means the entry is missing, 530 a rejected login, other 4xx replies and
// network failures are transient, and the remaining 5xx replies are permanent.
func classify(op, path string, err error) error {
	code, ok := replyCode(err)
	if !ok {
		return NewRecoverableRemoteError(op, path, err)
	}

	switch {
	case code == ftp.StatusFileUnavailable:
		return NewNonRecoverableRemoteError(op, path, fmt.Errorf("%w: %v", ErrNotFound, err))
	case code == ftp.StatusNotLoggedIn:
		return NewNonRecoverableRemoteError(op, path, fmt.Errorf("authentication failed: %w", err))
	case code >= 400 && code < 500:
		return NewRecoverableRemoteError(op, path, err)
	default:
		return NewNonRecoverableRemoteError(op, path, err)
	}
}
