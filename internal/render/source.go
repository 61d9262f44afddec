package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ============================================================
// Image Sources
// ============================================================

var (
	ErrImageTooLarge = errors.New("render: image exceeds size limit")
	// ErrBlockedHost — адрес картинки ведёт во внутреннюю сеть или не в списке разрешённых.
	ErrBlockedHost = errors.New("render: image host not allowed")
)

// ImageSource отдаёт байты картинки по её адресу из документа.
type ImageSource interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// HTTPSource качает картинки по http(s). Соединения во внутренние сети
// (loopback, private, link-local) запрещены на уровне dial, поэтому
// редиректы и DNS-ответы туда тоже не ведут.
type HTTPSource struct {
	client       *http.Client
	maxBytes     int64
	allowedHosts map[string]struct{}
	allowPrivate bool
}

// NewHTTPSource: пустой allowedHosts — любой публичный хост.
func NewHTTPSource(timeout time.Duration, maxBytes int64, allowedHosts ...string) *HTTPSource {
	s := &HTTPSource{maxBytes: maxBytes}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			if s.allowedHosts == nil {
				s.allowedHosts = make(map[string]struct{})
			}
			s.allowedHosts[h] = struct{}{}
		}
	}
	dialer := &net.Dialer{Timeout: timeout, Control: s.checkDial}
	s.client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        10,
		},
	}
	return s
}

func (s *HTTPSource) Fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported image url scheme %q", u.Scheme)
	}
	if !s.hostAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(resp.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func (s *HTTPSource) hostAllowed(host string) bool {
	if len(s.allowedHosts) == 0 {
		return true
	}
	_, ok := s.allowedHosts[strings.ToLower(host)]
	return ok
}

// checkDial вызывается для каждого адреса, к которому идёт соединение.
func (s *HTTPSource) checkDial(_, address string, _ syscall.RawConn) error {
	if s.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !publicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

// DirSource читает с диска картинки, опубликованные локальным хранилищем под
// baseURL; остальные адреса передаёт в next.
type DirSource struct {
	baseURL string
	root    string
	next    ImageSource
}

func NewDirSource(baseURL, root string, next ImageSource) *DirSource {
	return &DirSource{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
		root:    root,
		next:    next,
	}
}

func (s *DirSource) Fetch(ctx context.Context, src string) ([]byte, error) {
	if rel, ok := strings.CutPrefix(src, s.baseURL); ok {
		path := filepath.Join(s.root, filepath.Clean("/"+rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read local image: %w", err)
		}
		return data, nil
	}
	if s.next == nil {
		return nil, fmt.Errorf("no source for %s", src)
	}
	return s.next.Fetch(ctx, src)
}
