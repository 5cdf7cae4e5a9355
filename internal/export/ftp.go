package export

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures artifact delivery.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPDeliverer uploads export artifacts to partner FTP endpoints.
type FTPDeliverer struct {
	opts FTPOptions
}

// NewFTPDeliverer creates a new FTPDeliverer with the given options.
func NewFTPDeliverer(opts FTPOptions) *FTPDeliverer {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPDeliverer{opts: opts}
}

// ftpTarget is a parsed ftp:// destination. Credentials ride in the URL
// userinfo; absent credentials fall back to anonymous.
type ftpTarget struct {
	host string
	user string
	pass string
	path string
}

func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return ftpTarget{}, eris.New("empty host in ftp url")
	}

	target := ftpTarget{host: u.Host, path: u.Path, user: "anonymous", pass: "anonymous@"}
	if _, _, splitErr := net.SplitHostPort(target.host); splitErr != nil {
		target.host = net.JoinHostPort(target.host, "21")
	}
	if u.User != nil {
		target.user = u.User.Username()
		target.pass, _ = u.User.Password()
	}
	return target, nil
}

// Deliver uploads the local artifact to the ftp:// destination. A
// destination ending in "/" (or with no path) stores the artifact under
// its local file name.
func (d *FTPDeliverer) Deliver(ctx context.Context, ftpURL, localPath string) error {
	target, err := parseFTPURL(ftpURL)
	if err != nil {
		return err
	}
	if target.path == "" || strings.HasSuffix(target.path, "/") {
		target.path += filepath.Base(localPath)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return eris.Wrap(err, "open artifact")
	}
	defer file.Close()

	return d.upload(ctx, target, file)
}

// Upload streams r to the ftp:// destination, which must name a file.
func (d *FTPDeliverer) Upload(ctx context.Context, ftpURL string, r io.Reader) error {
	target, err := parseFTPURL(ftpURL)
	if err != nil {
		return err
	}
	if target.path == "" || strings.HasSuffix(target.path, "/") {
		return eris.New("ftp url needs a file path")
	}
	return d.upload(ctx, target, r)
}

func (d *FTPDeliverer) upload(ctx context.Context, target ftpTarget, r io.Reader) error {
	zap.L().Debug("ftp: connecting",
		zap.String("host", target.host),
		zap.String("path", target.path),
	)

	conn, err := ftp.Dial(target.host, ftp.DialWithTimeout(d.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "ftp dial")
	}

	if err := conn.Login(target.user, target.pass); err != nil {
		conn.Quit()
		return eris.Wrap(err, "ftp login")
	}

	if err := conn.Stor(target.path, r); err != nil {
		conn.Quit()
		return eris.Wrap(err, "ftp store")
	}

	if err := conn.Quit(); err != nil {
		return eris.Wrap(err, "quit ftp connection")
	}

	zap.L().Info("ftp: artifact delivered",
		zap.String("host", target.host),
		zap.String("path", target.path),
	)
	return nil
}
